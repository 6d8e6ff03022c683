package session

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mrsinham/dvhgrab/internal/alias"
	"github.com/mrsinham/dvhgrab/internal/analysis"
	"github.com/mrsinham/dvhgrab/internal/archive"
	"github.com/mrsinham/dvhgrab/internal/dvh"
	"github.com/mrsinham/dvhgrab/internal/logger"
	"github.com/mrsinham/dvhgrab/internal/metric"
	"github.com/mrsinham/dvhgrab/internal/rt"
)

// Request names the inputs of one analysis.
type Request struct {
	Archive       string
	StructureFile string
	DoseFile      string
	Definition    *analysis.Definition
	Settings      metric.Settings
	Aliases       *alias.Table
	// Provider computes DVHs; nil uses the grid calculator.
	Provider *dvh.Provider
}

// Analyze reads the structure set and dose of req and computes every metric
// of the definition. Unresolved structures and failed metrics are recorded
// in the table; only unreadable inputs abort the run.
func Analyze(req Request) (*ResultsTable, error) {
	if req.Definition == nil {
		return nil, fmt.Errorf("no analysis definition")
	}
	provider := req.Provider
	if provider == nil {
		provider = dvh.NewProvider(nil)
	}

	ss, err := archive.ReadStructureSet(req.Archive, req.StructureFile)
	if err != nil {
		return nil, err
	}
	dose, err := archive.ReadDoseGrid(req.Archive, req.DoseFile)
	if err != nil {
		return nil, err
	}

	table := &ResultsTable{
		RunID:         uuid.NewString(),
		Archive:       req.Archive,
		StructureFile: req.StructureFile,
		DoseFile:      req.DoseFile,
		Definition:    req.Definition.Name,
		Settings:      req.Settings,
	}
	logger.Debug("run %s: %d targets, relative=%v, prescription=%v",
		table.RunID, len(req.Definition.Targets), req.Settings.Relative, req.Settings.Prescription)

	for _, target := range req.Definition.Targets {
		table.Structures = append(table.Structures, analyzeTarget(ss, dose, target, req, provider))
	}

	table.Message = MessageComplete
	if !table.Complete() {
		table.Message = MessageMissing
	}
	return table, nil
}

func analyzeTarget(ss *rt.StructureSet, dose *rt.DoseGrid, target analysis.Target, req Request, provider *dvh.Provider) StructureResult {
	res := StructureResult{Name: target.Name}

	number, ok := alias.Resolve(ss.Catalog(), target.Name, req.Aliases)
	if !ok {
		logger.Info("structure %s not found", target.Name)
		for _, code := range target.Metrics {
			res.Metrics = append(res.Metrics, MetricResult{Code: code, Value: MissingValue, Unit: MissingUnit})
		}
		return res
	}
	res.Resolved = true
	res.Number = number

	h, err := provider.GetDVH(ss, dose, number, req.Settings.Prescription)
	if err != nil {
		logger.Warn("%v", err)
		for _, code := range target.Metrics {
			res.Metrics = append(res.Metrics, failed(code, err))
		}
		return res
	}
	res.DVH = h
	logger.Debug("structure %s (ROI %d): volume %.3f cm3", target.Name, number, h.Volume())

	for _, code := range target.Metrics {
		v, err := metric.Compute(h, code, req.Settings)
		if err != nil {
			logger.Info("structure %s: %v", target.Name, err)
			res.Metrics = append(res.Metrics, failed(code, err))
			continue
		}
		res.Metrics = append(res.Metrics, MetricResult{Code: code, Value: v.Value, Unit: v.Unit})
	}
	return res
}

func failed(code string, err error) MetricResult {
	return MetricResult{Code: code, Value: MissingValue, Unit: ErrorUnit, Err: err}
}
