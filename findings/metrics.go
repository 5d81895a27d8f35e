/*
metrics.go - Run-level KPI aggregation

PURPOSE:
  Summarizes a reconciliation run into the headline numbers an operator
  looks at first: how many buckets matched, how much money is in
  question, and how the findings break down by severity.
*/
package findings

import (
	"github.com/shopspring/decimal"

	"github.com/warp/lease-audit/audit"
)

// KPIs are the headline metrics for one reconciliation run.
type KPIs struct {
	TotalBuckets     int             `json:"total_buckets"`
	MatchedBuckets   int             `json:"matched_buckets"`
	ExceptionBuckets int             `json:"exception_buckets"`
	MatchRate        decimal.Decimal `json:"match_rate"`

	TotalExpected decimal.Decimal `json:"total_expected"`
	TotalActual   decimal.Decimal `json:"total_actual"`
	TotalVariance decimal.Decimal `json:"total_variance"`

	TotalFindings      int             `json:"total_findings"`
	FindingsBySeverity map[string]int  `json:"findings_by_severity"`
	TotalImpact        decimal.Decimal `json:"total_impact"`
}

// CalculateKPIs aggregates bucket results and findings. MatchRate is the
// matched fraction rounded to four places; zero buckets yields a zero rate.
func CalculateKPIs(buckets []audit.BucketResult, findings []Finding) KPIs {
	k := KPIs{
		MatchRate:          decimal.Zero,
		TotalExpected:      decimal.Zero,
		TotalActual:        decimal.Zero,
		TotalVariance:      decimal.Zero,
		TotalImpact:        decimal.Zero,
		FindingsBySeverity: make(map[string]int),
	}

	k.TotalBuckets = len(buckets)
	for _, b := range buckets {
		if b.Status == audit.StatusMatched {
			k.MatchedBuckets++
		}
		k.TotalExpected = k.TotalExpected.Add(b.ExpectedTotal)
		k.TotalActual = k.TotalActual.Add(b.ActualTotal)
		k.TotalVariance = k.TotalVariance.Add(b.Variance)
	}
	k.ExceptionBuckets = k.TotalBuckets - k.MatchedBuckets
	if k.TotalBuckets > 0 {
		k.MatchRate = decimal.NewFromInt(int64(k.MatchedBuckets)).
			Div(decimal.NewFromInt(int64(k.TotalBuckets))).
			Round(4)
	}

	k.TotalFindings = len(findings)
	for _, f := range findings {
		k.FindingsBySeverity[f.Severity]++
		k.TotalImpact = k.TotalImpact.Add(f.ImpactAmount)
	}
	return k
}
