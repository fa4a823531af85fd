// Package ranking scores content items from their engagement metrics and
// ranks them within a batch.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	factors, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default factors", "error", err)
//	}
//
//	svc := ranking.NewService(ranking.ServiceConfig{Logger: logger}, ranking.NewWeightedAlgorithm(), store)
//	if err := svc.AcceptFactors(*factors); err != nil {
//		// errors.Is(err, ranking.ErrFactorSumMismatch) or ranking.ErrFactorOutOfRange
//	}
//
//	result, err := svc.ScoreBatch(ctx, items, records, svc.Factors())
//	for _, s := range result.Scores {
//		fmt.Println(s.Rank, s.ItemID, s.Score)
//	}
//
// Algorithms:
//
// Scoring is delegated to an Algorithm. WeightedAlgorithm combines five
// components, each in the [0, 1] range, with the accepted Factors. Its
// CalculateScore depends only on its arguments; ApplyTrendingBoost reads
// the clock once per call.
//
// Ranking:
//
// ScoreBatch scores items in parallel, then sorts the complete set once by
// score descending (stable, so input order breaks ties) and assigns dense
// ranks starting at 1. Items without metrics are reported in
// BatchResult.Skipped instead of failing the batch.
//
// Recompute:
//
// RecomputeJob re-ranks categories marked in a DirtyTracker on every
// interval, reading items and metrics from a DataSource. A category that
// fails stays dirty and is retried on the next cycle.
package ranking
