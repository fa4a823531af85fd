package analytics

// MaxEngagementRate caps a derived engagement rate.
const MaxEngagementRate = 1.0

// DeriveMissing fills in engagement rate and average view duration where
// they are exactly zero and the record has views. Values already present
// are never overwritten, so applying it twice gives the same result.
// The input slice is not modified.
func DeriveMissing(records []MetricRecord) []MetricRecord {
	out := make([]MetricRecord, len(records))
	for i, r := range records {
		out[i] = deriveRecord(r)
	}
	return out
}

func deriveRecord(r MetricRecord) MetricRecord {
	if r.Views <= 0 {
		return r
	}
	if r.EngagementRate == 0 {
		r.EngagementRate = min((r.Likes+r.Comments+r.Shares)/r.Views, MaxEngagementRate)
	}
	if r.AverageViewDuration == 0 {
		r.AverageViewDuration = r.WatchTime / r.Views
	}
	return r
}
