package ledger

import (
	"sort"

	"github.com/wolfman30/payconiq-go/pkg/payconiq"
)

// StatusDrift is a payment whose locally recorded status differs from the
// one Payconiq reports.
type StatusDrift struct {
	PaymentID    string `json:"paymentId"`
	LocalStatus  string `json:"localStatus"`
	RemoteStatus string `json:"remoteStatus"`
}

// Report is the outcome of comparing the ledger with a remote search.
type Report struct {
	Matched       []string      `json:"matched"`
	MissingRemote []string      `json:"missingRemote"`
	UnknownLocal  []string      `json:"unknownLocal"`
	Drift         []StatusDrift `json:"drift"`
}

// Clean reports whether both sides agree completely.
func (r Report) Clean() bool {
	return len(r.MissingRemote) == 0 && len(r.UnknownLocal) == 0 && len(r.Drift) == 0
}

// Reconcile compares local entries with remote payments by payment id.
func Reconcile(local []Entry, remote []payconiq.Payment) Report {
	remoteByID := make(map[string]payconiq.Payment, len(remote))
	for _, p := range remote {
		remoteByID[p.PaymentID] = p
	}
	seen := make(map[string]bool, len(local))

	report := Report{
		Matched:       []string{},
		MissingRemote: []string{},
		UnknownLocal:  []string{},
		Drift:         []StatusDrift{},
	}
	for _, entry := range local {
		seen[entry.PaymentID] = true
		p, ok := remoteByID[entry.PaymentID]
		if !ok {
			report.MissingRemote = append(report.MissingRemote, entry.PaymentID)
			continue
		}
		report.Matched = append(report.Matched, entry.PaymentID)
		if p.Status != "" && p.Status != entry.Status {
			report.Drift = append(report.Drift, StatusDrift{
				PaymentID:    entry.PaymentID,
				LocalStatus:  entry.Status,
				RemoteStatus: p.Status,
			})
		}
	}
	for _, p := range remote {
		if !seen[p.PaymentID] {
			report.UnknownLocal = append(report.UnknownLocal, p.PaymentID)
			seen[p.PaymentID] = true
		}
	}

	sort.Strings(report.Matched)
	sort.Strings(report.MissingRemote)
	sort.Strings(report.UnknownLocal)
	sort.Slice(report.Drift, func(i, j int) bool { return report.Drift[i].PaymentID < report.Drift[j].PaymentID })
	return report
}
