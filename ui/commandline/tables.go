// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package commandline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/graphsage/pkg/core/tensors"
	"github.com/gomlx/graphsage/pkg/graphstore"
	"github.com/gomlx/graphsage/pkg/ml/model"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Faint(false).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Faint(true).
			PaddingLeft(1).PaddingRight(1)

	// TitleStyle used for the titles of the reports.
	TitleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 0, 4)
)

// newPlainTable with alternating row styles: the first column is right-aligned.
func newPlainTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			switch {
			case row == lgtable.HeaderRow:
				return headerRowStyle
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// ModelSummary renders a table summarizing the model and the graph it is applied to.
func ModelSummary(m *model.GraphSage, store *graphstore.Store) string {
	config := m.Config()
	table := newPlainTable()
	table.Row("nodes", humanize.Comma(int64(store.NumNodes())))
	table.Row("relationships", humanize.Comma(int64(store.NumRelationships())))
	table.Row("features", strings.Join(config.FeatureKeys, ", "))
	table.Row("layers", fmt.Sprint(config.LayerDims))
	table.Row("sample sizes", fmt.Sprint(config.SampleSizes))
	table.Row("activation", config.Activation)
	table.Row("# parameters", humanize.Comma(int64(m.NumParameters())))
	table.Row("# bytes", humanize.Bytes(uint64(m.Memory())))
	return TitleStyle.Render("Model") + "\n" + table.Render()
}

// EmbeddingsTable renders a table with one row per node: its id and its embedding values, printed
// with the given precision.
func EmbeddingsTable(nodeIds []graphstore.NodeId, embeddings *tensors.Tensor, precision int) string {
	table := newPlainTable()
	headers := []string{"node"}
	for col := range embeddings.Shape().Dim(1) {
		headers = append(headers, fmt.Sprintf("#%d", col))
	}
	table.Headers(headers...)
	for row, id := range nodeIds {
		cells := []string{strconv.FormatInt(id, 10)}
		for _, value := range embeddings.Row(row) {
			cells = append(cells, strconv.FormatFloat(value, 'f', precision, 64))
		}
		table.Row(cells...)
	}
	return TitleStyle.Render("Embeddings") + "\n" + table.Render()
}
