// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package model

import (
	"os"
	"path/filepath"

	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/ml/initializer"
	"github.com/gomlx/graphsage/pkg/support/fsutil"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"
)

// ConfigFileName is the name of the file with the model Config in a checkpoint directory.
const ConfigFileName = "model.yaml"

// Save the model to the checkpoint directory dir: the Config as YAML, and one file per weights tensor.
// The directory is created if it doesn't exist, and "~" is expanded to the user's home directory.
func (m *GraphSage) Save(dir string) error {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating checkpoint directory %q", dir)
	}
	configBytes, err := yaml.Marshal(&m.config)
	if err != nil {
		return errors.Wrap(err, "serializing model configuration")
	}
	if err = os.WriteFile(filepath.Join(dir, ConfigFileName), configBytes, 0o644); err != nil {
		return errors.Wrapf(err, "writing model configuration to %q", dir)
	}
	for ii, w := range m.Weights() {
		if err = w.Value().Save(filepath.Join(dir, weightsFileName(ii))); err != nil {
			return err
		}
	}
	klog.V(1).Infof("saved model checkpoint to %q", dir)
	return nil
}

// Load a model saved with Save from the checkpoint directory dir.
func Load(dir string) (*GraphSage, error) {
	dir, err := fsutil.ReplaceTildeInDir(dir)
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(dir, ConfigFileName)
	exists, err := fsutil.FileExists(configPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.Errorf("%q is not a model checkpoint, %q not found", dir, ConfigFileName)
	}
	configBytes, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %q", configPath)
	}
	var config Config
	if err = yaml.Unmarshal(configBytes, &config); err != nil {
		return nil, errors.Wrapf(err, "parsing %q", configPath)
	}
	m, err := New(config, initializer.Zero)
	if err != nil {
		return nil, errors.WithMessagef(err, "invalid model configuration in %q", configPath)
	}
	for ii, w := range m.Weights() {
		value, err := tensors.Load(filepath.Join(dir, weightsFileName(ii)))
		if err != nil {
			return nil, err
		}
		if !value.Shape().Equal(w.Shape()) {
			return nil, errors.Errorf("checkpoint %q: weights %s has shape %s, but model expects %s",
				dir, weightsFileName(ii), value.Shape(), w.Shape())
		}
		copy(w.Value().Flat(), value.Flat())
	}
	return m, nil
}
