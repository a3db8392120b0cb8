// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package commandline contains convenience UI training tools for the command line: a progress bar
// attached to a train.Trainer, and tables reporting models and embeddings.
package commandline

import (
	"fmt"
	"io"
	"os"

	"github.com/gomlx/graphsage/pkg/ml/train"
	"github.com/muesli/termenv"
	"github.com/schollz/progressbar/v3"
)

// ProgressbarStyle to use. Defaults to the ASCII version.
// Consider "progressbar.ThemeUnicode" for a prettier version.
// But it requires some of the graphical symbols to be supported.
var ProgressbarStyle = progressbar.ThemeASCII

// ProgressBarWriter is where progress bars are displayed.
var ProgressBarWriter io.Writer = os.Stdout

// AttachProgressBar creates a progress bar that is updated after each epoch of trainer, displaying the
// last loss.
//
// Color codes are only used if the output supports them.
func AttachProgressBar(trainer *train.Trainer) {
	colors := termenv.NewOutput(ProgressBarWriter).EnvColorProfile() != termenv.Ascii
	bar := progressbar.NewOptions(trainer.NumEpochs(),
		progressbar.OptionSetDescription("training"),
		progressbar.OptionSetWriter(ProgressBarWriter),
		progressbar.OptionUseANSICodes(colors),
		progressbar.OptionEnableColorCodes(colors),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("epochs"),
		progressbar.OptionSetTheme(ProgressbarStyle),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(ProgressBarWriter) }),
	)
	trainer.OnEpoch(func(epoch int, loss float64) error {
		if bar.IsFinished() {
			return nil
		}
		bar.Describe(fmt.Sprintf("epoch %d, loss=%.4g", epoch, loss))
		return bar.Add(1)
	})
}
