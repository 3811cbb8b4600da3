package flow

import (
	"fmt"
	"sort"

	"github.com/dataprimer/backend/internal/models"
	"github.com/dataprimer/backend/internal/rules"
)

// fileEdits bundles the three edit sources for the selected file.
type fileEdits struct {
	file       models.UploadedFileInfo
	columns    []models.ColumnNameEdit
	types      []models.DataTypeSelection
	strategies []models.MissingValueStrategy
}

func selectedEdits(st *models.FlowState) (*fileEdits, error) {
	file, ok := st.SelectedFile()
	if !ok {
		return nil, fmt.Errorf("flow has no selected file")
	}
	if file.Path == "" {
		return nil, fmt.Errorf("selected file %q has no storage path", file.Name)
	}
	return &fileEdits{
		file:       file,
		columns:    st.ColumnEdits[file.Name],
		types:      st.TypeSelections[file.Name],
		strategies: st.MissingStrategies[file.Name],
	}, nil
}

// BuildPlan collapses the selected file's edits into the split payload
// shape used when leaving the missing-values review stage. Each structure
// carries only genuine deltas: dropped columns, kept non-identity renames,
// update types differing from the detected type (temporal targets carry a
// captured format), and non-none strategies (custom with its literal).
func BuildPlan(st *models.FlowState) (*models.TransformationPlan, error) {
	edits, err := selectedEdits(st)
	if err != nil {
		return nil, err
	}

	plan := &models.TransformationPlan{
		DropColumns:       make([]string, 0),
		Renames:           make(map[string]string),
		TypeChanges:       make(map[string]models.TypeChange),
		MissingStrategies: make(map[string]models.StrategyChange),
	}

	dropped := make(map[string]bool)
	for _, edit := range edits.columns {
		if !edit.Keep {
			plan.DropColumns = append(plan.DropColumns, edit.OriginalName)
			dropped[edit.OriginalName] = true
			continue
		}
		if edit.EditedName != "" && edit.EditedName != edit.OriginalName {
			plan.Renames[edit.OriginalName] = edit.EditedName
		}
	}
	sort.Strings(plan.DropColumns)

	for _, sel := range edits.types {
		if dropped[sel.ColumnName] {
			continue
		}
		if sel.UpdateType == "" || sel.UpdateType == sel.DetectedType {
			continue
		}
		change := models.TypeChange{Dtype: sel.UpdateType}
		if rules.IsTemporalType(sel.UpdateType) {
			change.Format = sel.Format
		}
		plan.TypeChanges[sel.ColumnName] = change
	}

	for _, strat := range edits.strategies {
		if dropped[strat.ColumnName] {
			continue
		}
		if strat.Strategy == "" || strat.Strategy == models.StrategyNone {
			continue
		}
		change := models.StrategyChange{Strategy: strat.Strategy}
		if strat.Strategy == models.StrategyCustom {
			change.Value = strat.Value
		}
		plan.MissingStrategies[strat.ColumnName] = change
	}

	return plan, nil
}

// BuildInstructions collapses the selected file's edits into the per-column
// instruction list sent at finalize time. A dropped column contributes only
// drop_column, regardless of other recorded edits; a column with no delta
// from its original name, detected type, and no-missing-handling state
// contributes nothing.
func BuildInstructions(st *models.FlowState) ([]models.ColumnInstruction, error) {
	edits, err := selectedEdits(st)
	if err != nil {
		return nil, err
	}

	columnEdits := make(map[string]models.ColumnNameEdit)
	typeSels := make(map[string]models.DataTypeSelection)
	strategies := make(map[string]models.MissingValueStrategy)

	names := make(map[string]bool)
	for _, e := range edits.columns {
		columnEdits[e.OriginalName] = e
		names[e.OriginalName] = true
	}
	for _, s := range edits.types {
		typeSels[s.ColumnName] = s
		names[s.ColumnName] = true
	}
	for _, s := range edits.strategies {
		strategies[s.ColumnName] = s
		names[s.ColumnName] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	instructions := make([]models.ColumnInstruction, 0, len(ordered))
	for _, name := range ordered {
		if edit, ok := columnEdits[name]; ok && !edit.Keep {
			instructions = append(instructions, models.ColumnInstruction{
				Column:     name,
				DropColumn: true,
			})
			continue
		}

		inst := models.ColumnInstruction{Column: name}
		delta := false

		if edit, ok := columnEdits[name]; ok {
			if edit.EditedName != "" && edit.EditedName != edit.OriginalName {
				inst.NewName = edit.EditedName
				delta = true
			}
		}
		if sel, ok := typeSels[name]; ok {
			if sel.UpdateType != "" && sel.UpdateType != sel.DetectedType {
				inst.Dtype = sel.UpdateType
				if rules.IsTemporalType(sel.UpdateType) {
					inst.Format = sel.Format
				}
				delta = true
			}
		}
		if strat, ok := strategies[name]; ok {
			if strat.Strategy != "" && strat.Strategy != models.StrategyNone {
				inst.MissingStrategy = strat.Strategy
				if strat.Strategy == models.StrategyCustom {
					inst.CustomValue = strat.Value
				}
				delta = true
			}
		}

		if delta {
			instructions = append(instructions, inst)
		}
	}

	return instructions, nil
}

// BuildClassifierConfig derives the identifier/measure assignment persisted
// at finalize time. Columns marked for removal are excluded and kept
// columns appear under their final names.
func BuildClassifierConfig(st *models.FlowState) (*models.ClassifierConfig, error) {
	edits, err := selectedEdits(st)
	if err != nil {
		return nil, err
	}

	finalName := make(map[string]string)
	dropped := make(map[string]bool)
	for _, edit := range edits.columns {
		if !edit.Keep {
			dropped[edit.OriginalName] = true
			continue
		}
		if edit.EditedName != "" {
			finalName[edit.OriginalName] = edit.EditedName
		}
	}

	cfg := &models.ClassifierConfig{
		FilePath:    edits.file.Path,
		Identifiers: make([]string, 0),
		Measures:    make([]string, 0),
	}
	for _, sel := range edits.types {
		if dropped[sel.ColumnName] {
			continue
		}
		name := sel.ColumnName
		if renamed, ok := finalName[name]; ok {
			name = renamed
		}
		if sel.ColumnRole == models.RoleMeasure {
			cfg.Measures = append(cfg.Measures, name)
		} else {
			cfg.Identifiers = append(cfg.Identifiers, name)
		}
	}
	sort.Strings(cfg.Identifiers)
	sort.Strings(cfg.Measures)
	return cfg, nil
}
