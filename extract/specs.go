package extract

import (
	"fmt"

	"github.com/hauntworks/hauntsync/portal"
)

// Built-in report specs, one per scrape job. The iVolunteer admin serves
// the volunteer-side reports; Passage serves ticket sales.
var reportSpecs = map[string]ReportSpec{
	"volunteers": {
		Name:         "volunteers",
		Portal:       portal.KindIVolunteer,
		ViewID:       "participants",
		WaitSelector: `#participant-report`,
		Trigger:      `#export-csv`,
		MinRows:      1,
	},
	"events": {
		Name:         "events",
		Portal:       portal.KindIVolunteer,
		ViewID:       "events",
		WaitSelector: `#event-list`,
		Trigger:      `#export-csv`,
		MinRows:      1,
	},
	"participation": {
		Name:         "participation",
		Portal:       portal.KindIVolunteer,
		ViewID:       "signups",
		WaitSelector: `#signup-report`,
		Trigger:      `#export-csv`,
	},
	"groups": {
		Name:         "groups",
		Portal:       portal.KindIVolunteer,
		ViewID:       "groups",
		WaitSelector: `#group-list`,
		Trigger:      `#export-csv`,
	},
	"ticket-sales": {
		Name:         "ticket-sales",
		Portal:       portal.KindPassage,
		ViewID:       "dashboard/reports/sales",
		WaitSelector: `#sales-report`,
		Trigger:      `a[data-export="csv"]`,
		MinRows:      1,
	},
}

// SpecFor returns the built-in report spec for a scrape job name
func SpecFor(job string) (ReportSpec, error) {
	spec, ok := reportSpecs[job]
	if !ok {
		return ReportSpec{}, fmt.Errorf("unknown report %q", job)
	}
	return spec, nil
}

// JobNames lists the known scrape job names
func JobNames() []string {
	names := make([]string, 0, len(reportSpecs))
	for name := range reportSpecs {
		names = append(names, name)
	}
	return names
}
