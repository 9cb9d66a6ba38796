package gather

import (
	"gttdash/internal/domain"
	"gttdash/internal/history"
)

// BenchmarkIndex is the broad-market index used for sector rotation.
var BenchmarkIndex = domain.IndexSpec{Symbol: "^NSEI", Name: "Nifty 50"}

// IndexUniverse is the fixed list of NSE indices scored by market health, in
// display order.
var IndexUniverse = []domain.IndexSpec{
	{Symbol: "^NSEI", Name: "Nifty 50"},
	{Symbol: "^NSEMDCP50", Name: "Nifty Midcap 150"},
	{Symbol: "^NSEBANK", Name: "Bank Nifty"},
	{Symbol: "^CNXIT", Name: "Nifty IT"},
	{Symbol: "^CNXAUTO", Name: "Nifty Auto"},
	{Symbol: "^CNXPHARMA", Name: "Nifty Pharma"},
	{Symbol: "^CNXFMCG", Name: "Nifty FMCG"},
	{Symbol: "^CNXMETAL", Name: "Nifty Metal"},
	{Symbol: "^CNXREALTY", Name: "Nifty Realty"},
	{Symbol: "^CNXENERGY", Name: "Nifty Energy"},
	{Symbol: "^CNXINFRA", Name: "Nifty Infrastructure"},
	{Symbol: "^CNXPSE", Name: "Nifty PSE"},
	{Symbol: "^CNXPSUBANK", Name: "Nifty PSU Bank"},
	{Symbol: "^CNXMEDIA", Name: "Nifty Media"},
	{Symbol: "^CNXCMDT", Name: "Nifty Commodities"},
	{Symbol: "^CNXCONSUM", Name: "Nifty Consumption"},
	{Symbol: "^CNXSERVICE", Name: "Nifty Services"},
	{Symbol: "^CNXMNC", Name: "Nifty MNC"},
}

// SectorIndices are the indices plotted against BenchmarkIndex.
var SectorIndices = []domain.IndexSpec{
	{Symbol: "^NSEBANK", Name: "Bank Nifty"},
	{Symbol: "^CNXIT", Name: "Nifty IT"},
	{Symbol: "^CNXAUTO", Name: "Nifty Auto"},
	{Symbol: "^CNXMETAL", Name: "Nifty Metal"},
	{Symbol: "^CNXFMCG", Name: "Nifty FMCG"},
	{Symbol: "^CNXPHARMA", Name: "Nifty Pharma"},
	{Symbol: "^CNXREALTY", Name: "Nifty Realty"},
	{Symbol: "^CNXENERGY", Name: "Nifty Energy"},
	{Symbol: "^CNXINFRA", Name: "Nifty Infrastructure"},
}

// IndexTasks builds fetch tasks for indices.
func IndexTasks(indices []domain.IndexSpec) []Task {
	tasks := make([]Task, 0, len(indices))
	for _, idx := range indices {
		tasks = append(tasks, Task{Key: history.IndexKey(idx.Symbol), Ticker: idx.Symbol, Label: idx.Name})
	}
	return tasks
}
