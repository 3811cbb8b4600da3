package models

// Stage identifies one step in the guided upload sequence.
type Stage string

const (
	StageWelcome       Stage = "U0"
	StageUpload        Stage = "U1"
	StageHeaderSelect  Stage = "U2"
	StageColumnNames   Stage = "U3"
	StageDataTypes     Stage = "U4"
	StageMissingValues Stage = "U5"
	StagePreview       Stage = "U6"
	StageFinalize      Stage = "U7"
)

// FlowMode selects which stage chain a flow walks.
type FlowMode string

const (
	// FlowModeNewUpload walks the full chain starting at the upload stage.
	FlowModeNewUpload FlowMode = "new_upload"
	// FlowModeExistingDataset starts from a dataset already in storage,
	// so the upload stage is skipped.
	FlowModeExistingDataset FlowMode = "existing_dataset"
)

// StageSequence returns the ordered stage chain for a mode.
func StageSequence(mode FlowMode) []Stage {
	if mode == FlowModeExistingDataset {
		return []Stage{
			StageWelcome,
			StageHeaderSelect,
			StageColumnNames,
			StageDataTypes,
			StageMissingValues,
			StagePreview,
			StageFinalize,
		}
	}
	return []Stage{
		StageWelcome,
		StageUpload,
		StageHeaderSelect,
		StageColumnNames,
		StageDataTypes,
		StageMissingValues,
		StagePreview,
		StageFinalize,
	}
}
