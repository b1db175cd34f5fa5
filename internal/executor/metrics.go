package executor

import (
	"math"
	"sort"
	"time"

	"github.com/sells-group/bankquery/internal/model"
)

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func num(row model.Row, field string) float64 {
	f, _ := toFloat(row[field])
	return f
}

// computeNII sums interest income minus interest expense over the rows.
func computeNII(rows []model.Row) float64 {
	var income, expense float64
	for _, row := range rows {
		income += num(row, "interest_income")
		expense += num(row, "interest_expense")
	}
	return round2(income - expense)
}

// computeNIM is net interest income over average earning assets, expressed as
// a percentage. Zero assets yield zero rather than a division error.
func computeNIM(rows []model.Row) float64 {
	var income, expense, assets float64
	for _, row := range rows {
		income += num(row, "interest_income")
		expense += num(row, "interest_expense")
		assets += num(row, "avg_earning_assets")
	}
	if assets == 0 {
		return 0
	}
	return round2((income - expense) / assets * 100)
}

// computeECL evaluates PD x LGD x EAD for each loan row.
func computeECL(rows []model.Row) (perLoan []model.Row, total float64) {
	perLoan = make([]model.Row, 0, len(rows))
	for _, row := range rows {
		ecl := round2(num(row, "pd") * num(row, "lgd") * num(row, "ead"))
		out := model.Row{
			"loan_id":     row["loan_id"],
			"customer_id": row["customer_id"],
			"product":     row["product"],
			"region":      row["region"],
			"stage_ifrs9": row["stage_ifrs9"],
			"ecl":         ecl,
		}
		perLoan = append(perLoan, out)
		total += ecl
	}
	return perLoan, round2(total)
}

// nsfrRow is one month's Net Stable Funding Ratio.
type nsfrRow struct {
	nsfr   float64
	breach bool
}

// computeNSFR is available stable funding over required stable funding as a
// percentage. A zero RSF denominator is itself a data problem, so the month
// reports a zero ratio and is marked as a breach.
func computeNSFR(asf, rsf, flagThreshold float64) nsfrRow {
	if rsf == 0 {
		return nsfrRow{nsfr: 0, breach: true}
	}
	ratio := round2(asf / rsf * 100)
	return nsfrRow{nsfr: ratio, breach: ratio < flagThreshold}
}

// structuringResult is the per-account outcome of the structuring scan.
type structuringResult struct {
	accountID  string
	customerID string
	region     string
	deposits   []model.Row
	threshold  float64
	flagged    bool
}

// detectStructuring scans cash deposits for amounts just under the reporting
// threshold clustered within a sliding window. A deposit qualifies when its
// amount is at least 90 percent of the jurisdiction threshold but below it.
// An account is flagged when minCount or more qualifying deposits fall within
// any windowDays-day span.
func detectStructuring(rows []model.Row, d *Data, windowDays, minCount int) []structuringResult {
	type acct struct {
		customerID string
		region     string
		threshold  float64
		deposits   []model.Row
	}

	order := make([]string, 0)
	accounts := make(map[string]*acct)

	for _, row := range rows {
		if txType, _ := row["type"].(string); txType != "deposit" {
			continue
		}
		if cash, _ := row["cash"].(bool); !cash {
			continue
		}
		jurisdiction, _ := row["jurisdiction"].(string)
		currency, _ := row["currency"].(string)
		threshold := d.ThresholdFor(jurisdiction, currency)
		amount := num(row, "amount")
		if amount < 0.9*threshold || amount >= threshold {
			continue
		}

		id, _ := row["account_id"].(string)
		a, ok := accounts[id]
		if !ok {
			customer, _ := row["customer_id"].(string)
			a = &acct{customerID: customer, region: jurisdiction, threshold: threshold}
			accounts[id] = a
			order = append(order, id)
		}
		a.deposits = append(a.deposits, row)
	}

	results := make([]structuringResult, 0, len(order))
	for _, id := range order {
		a := accounts[id]
		results = append(results, structuringResult{
			accountID:  id,
			customerID: a.customerID,
			region:     a.region,
			deposits:   a.deposits,
			threshold:  a.threshold,
			flagged:    hasCluster(a.deposits, windowDays, minCount),
		})
	}
	return results
}

// hasCluster reports whether minCount deposits fall within any windowDays-day
// span. Dates compare lexically, which is sound for ISO dates; the window is
// inclusive of both endpoints.
func hasCluster(deposits []model.Row, windowDays, minCount int) bool {
	dates := make([]string, 0, len(deposits))
	for _, dep := range deposits {
		if d, ok := dep["date"].(string); ok && d != "" {
			dates = append(dates, d)
		}
	}
	sort.Strings(dates)
	for i := range dates {
		count := 1
		for j := i + 1; j < len(dates); j++ {
			if daysBetween(dates[i], dates[j]) < windowDays {
				count++
			}
		}
		if count >= minCount {
			return true
		}
	}
	return false
}

func daysBetween(a, b string) int {
	ta, errA := time.Parse("2006-01-02", a)
	tb, errB := time.Parse("2006-01-02", b)
	if errA != nil || errB != nil {
		return 1 << 30
	}
	return int(tb.Sub(ta).Hours() / 24)
}
