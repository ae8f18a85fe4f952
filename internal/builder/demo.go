package builder

import "github.com/starford/sitesmith/internal/models"

func intPtr(n int) *int { return &n }

// DemoSite returns a small site used when no source is configured.
func DemoSite() models.SiteData {
	return models.SiteData{
		Site: models.Site{
			ID:               "demo-site",
			Name:             "Northwind Analytics",
			Domain:           "northwind.example.com",
			BusinessType:     "SaaS",
			BrandDescription: "Northwind Analytics turns raw operational data into clear, shareable dashboards for growing teams.",
			TargetAudience:   []string{"Operations leads", "Founders"},
			PrimaryColor:     "#0f62fe",
			Theme:            "G100",
			Status:           models.StatusDraft,
		},
		Pages: []models.Page{
			{
				ID:       "demo-home",
				Name:     "Home",
				Route:    "/",
				PageType: pageTypeLanding,
				NavOrder: 0,
				Status:   models.StatusPublished,
				Sections: []models.Section{
					{Name: "Dashboards your whole team understands", SectionType: "Hero", Order: 1},
					{Name: "3 core services", SectionType: "Services", Order: 2},
					{Name: "What customers say", SectionType: "Testimonial", Order: 3},
					{Name: "Common questions", SectionType: "FAQ", Order: 4},
					{Name: "Start your free trial", SectionType: "CTA", Order: 5},
					{Name: "Footer", SectionType: "Footer", Order: 6},
				},
			},
			{
				ID:       "demo-about",
				Name:     "About",
				Route:    "/about",
				PageType: "About",
				NavOrder: 1,
				Status:   models.StatusPublished,
				Sections: []models.Section{
					{Name: "Our story", SectionType: "Hero", Order: 1},
					{Name: "How we work", SectionType: "Content", Description: "We ship small, measurable improvements every week.", Order: 2},
					{Name: "Meet the team", SectionType: "Team", ContentCount: intPtr(3), Order: 3},
					{Name: "Footer", SectionType: "Footer", Order: 4},
				},
			},
			{
				ID:       "demo-pricing",
				Name:     "Pricing",
				Route:    "/pricing",
				PageType: pageTypeLanding,
				NavOrder: 2,
				Status:   models.StatusPublished,
				Sections: []models.Section{
					{Name: "Simple plans", SectionType: "Hero", Order: 1},
					{Name: "3 plans", SectionType: "Pricing", Order: 2},
					{Name: "Talk to sales", SectionType: "CTA", Order: 3},
					{Name: "Footer", SectionType: "Footer", Order: 4},
				},
			},
		},
		Content: models.ContentDatabases{
			Services: []models.Service{
				{ID: "svc-1", Name: "Live dashboards", Description: "Connect your sources once and watch metrics update in real time.", CTALabel: "See dashboards"},
				{ID: "svc-2", Name: "Scheduled reports", Description: "Send the numbers that matter to the right inbox every Monday."},
				{ID: "svc-3", Name: "Alerting", Description: "Get notified the moment a metric drifts out of its normal range."},
			},
			Testimonials: []models.Testimonial{
				{ID: "t-1", Quote: "We replaced four spreadsheets and a weekly meeting with one Northwind board.", Author: "Dana Reyes", Role: "COO, Brightline", Rating: 5},
			},
			Team: []models.TeamMember{
				{ID: "m-1", Name: "Ada Park", Role: "CEO"},
				{ID: "m-2", Name: "Luis Ortega", Role: "CTO"},
				{ID: "m-3", Name: "Mei Tan", Role: "Head of Design"},
			},
		},
	}
}
