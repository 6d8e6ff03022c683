package help

// HelpText describes a console action
type HelpText struct {
	Title       string
	Description string
	Details     string
	Example     string
}

// Texts is keyed by action key
var Texts = map[string]HelpText{
	"open": {
		Title:       "DICOM ZIP",
		Description: "archive exported from the planning system",
		Details:     "Every .dcm entry is classified as RT Structure Set, RT Dose or other.\nOpening an archive clears the file selections and the last results.",
		Example:     "exports/patient01.zip",
	},
	"structure_file": {
		Title:       "STRUCTURE FILE",
		Description: "RT Structure Set holding the contours",
	},
	"dose_file": {
		Title:       "DOSE FILE",
		Description: "RT Dose grid the statistics are computed from",
		Details:     "The study description of the dose file is shown once selected.",
	},
	"analysis": {
		Title:       "ANALYSIS",
		Description: "definition listing the metrics per structure",
		Details:     "One STRUCTURE:METRIC per line, read from the configs directory.",
		Example:     "Rectum:V50Gy",
	},
	"mode": {
		Title:       "DISPLAY AS",
		Description: "absolute or relative reporting",
		Details:     "Absolute: Gy and cm3.\nRelative: V metrics as % of the structure volume, D metrics as % of the prescription.",
	},
	"prescription": {
		Title:       "PRESCRIPTION",
		Description: "prescription dose in Gy",
		Details:     "Used by relative D metrics and percent-of-prescription V metrics.",
		Example:     "60",
	},
	"alias": {
		Title:       "ALIAS",
		Description: "alternative name tried when a structure is not found",
		Details:     "The structure name is always tried first, then its aliases in order.",
		Example:     "PTV_60=PTV",
	},
	"plot": {
		Title:       "DVH CHART",
		Description: "PNG chart of the cumulative DVHs of the last analysis",
		Example:     "dvh.png",
	},
}
