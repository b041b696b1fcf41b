package services

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/teamello/backend/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// Risk bands shown on the printable report.
const (
	BandStable          = "stable"
	BandNeedsAttention  = "needs attention"
	BandActiveManagement = "active management"
)

// RiskBand maps a 1..100 risk score to its report band.
func RiskBand(score int) string {
	switch {
	case score < 30:
		return BandStable
	case score < 60:
		return BandNeedsAttention
	default:
		return BandActiveManagement
	}
}

const reportCheckInLimit = 5

type ReportService struct {
	db       *gorm.DB
	teams    *TeamService
	members  *MemberService
	analyses *AnalysisService
	checkins *CheckInService
	tmpl     *template.Template
}

func NewReportService(db *gorm.DB, teams *TeamService, members *MemberService, analyses *AnalysisService, checkins *CheckInService) *ReportService {
	titleCaser := cases.Title(language.English)
	funcMap := template.FuncMap{
		"title": titleCaser.String,
		"date":  func(t time.Time) string { return t.Format("Jan 2, 2006") },
		"upper": strings.ToUpper,
	}
	return &ReportService{
		db:       db,
		teams:    teams,
		members:  members,
		analyses: analyses,
		checkins: checkins,
		tmpl:     template.Must(template.New("report").Funcs(funcMap).Parse(reportTemplate)),
	}
}

type reportRole struct {
	Name string
	models.RoleSuggestion
}

type reportCheckIn struct {
	Name string
	models.CheckIn
}

type reportData struct {
	Team        *models.Team
	GeneratedAt time.Time
	Members     []MemberView
	Analysis    *models.TeamAnalysis
	Band        string
	Roles       []reportRole
	CheckIns    []reportCheckIn
}

// Render builds the printable HTML report for a team's latest analysis.
func (s *ReportService) Render(ctx context.Context, identity Identity, teamID string) ([]byte, error) {
	team, err := s.teams.Get(ctx, teamID)
	if err != nil {
		return nil, err
	}
	if _, err := s.members.Require(ctx, teamID, identity.UserID); err != nil {
		return nil, err
	}
	analysis, err := s.analyses.Latest(ctx, teamID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.List(ctx, teamID)
	if err != nil {
		return nil, err
	}
	checkins, err := s.checkins.ListRecent(ctx, teamID, reportCheckInLimit)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(members))
	for _, m := range members {
		if m.User != nil {
			names[m.UserID] = m.User.Name
		}
	}
	nameOf := func(userID *string) string {
		if userID == nil {
			return "Unassigned member"
		}
		if name, ok := names[*userID]; ok {
			return name
		}
		return "Former member"
	}

	data := reportData{
		Team:        team,
		GeneratedAt: time.Now(),
		Members:     members,
		Analysis:    analysis,
		Band:        RiskBand(analysis.RiskScore),
	}
	for _, rs := range analysis.RoleSuggestions {
		data.Roles = append(data.Roles, reportRole{Name: nameOf(rs.UserID), RoleSuggestion: rs})
	}
	for _, c := range checkins {
		userID := c.UserID
		data.CheckIns = append(data.CheckIns, reportCheckIn{Name: nameOf(&userID), CheckIn: c})
	}

	var buf bytes.Buffer
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Team.Name}} - Team Risk Report</title>
<style>
body { font-family: sans-serif; margin: 2rem; color: #222; }
h1 { margin-bottom: 0; }
.muted { color: #666; }
.band { font-weight: bold; }
table { border-collapse: collapse; width: 100%; margin-bottom: 1.5rem; }
th, td { border: 1px solid #ddd; padding: 0.4rem; text-align: left; vertical-align: top; }
@media print { .no-print { display: none; } }
</style>
</head>
<body>
<h1>{{.Team.Name}}</h1>
<p class="muted">Generated {{date .GeneratedAt}} &middot; analysis from {{date .Analysis.CreatedAt}}</p>
{{if .Team.Description}}<p>{{.Team.Description}}</p>{{end}}

<h2>Risk score: {{.Analysis.RiskScore}}/100</h2>
<p class="band">This team is {{.Band}}.</p>

<h2>Members</h2>
<table>
<tr><th>Name</th><th>Email</th><th>Role</th><th>Survey</th></tr>
{{range .Members}}<tr><td>{{if .User}}{{.User.Name}}{{end}}</td><td>{{if .User}}{{.User.Email}}{{end}}</td><td>{{title .Role}}</td><td>{{if .SurveySubmitted}}done{{else}}pending{{end}}</td></tr>
{{end}}</table>

<h2>Risk factors</h2>
{{if .Analysis.RiskFactors}}<table>
<tr><th>Category</th><th>Severity</th><th>Description</th></tr>
{{range .Analysis.RiskFactors}}<tr><td>{{.Category}}</td><td>{{upper .Severity}}</td><td>{{.Description}}</td></tr>
{{end}}</table>{{else}}<p class="muted">No risk factors identified.</p>{{end}}

<h2>Recommendations</h2>
{{range .Analysis.Recommendations}}<h3>{{.Title}} <span class="muted">({{.Priority}} priority)</span></h3>
<p>{{.Description}}</p>
{{if .Actions}}<ul>{{range .Actions}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{else}}<p class="muted">No recommendations.</p>{{end}}

<h2>Suggested roles</h2>
{{if .Roles}}<table>
<tr><th>Member</th><th>Role</th><th>Reasoning</th></tr>
{{range .Roles}}<tr><td>{{.Name}}</td><td>{{.SuggestedRole}}</td><td>{{.Reasoning}}</td></tr>
{{end}}</table>{{else}}<p class="muted">No role suggestions.</p>{{end}}

<h2>Recent check-ins</h2>
{{if .CheckIns}}<table>
<tr><th>Date</th><th>Member</th><th>Mood</th><th>Progress</th><th>Challenges</th></tr>
{{range .CheckIns}}<tr><td>{{date .CreatedAt}}</td><td>{{.Name}}</td><td>{{title .Mood}}</td><td>{{.Progress}}%</td><td>{{.Challenges}}{{if .NeedsHelp}} <strong>(needs help)</strong>{{end}}</td></tr>
{{end}}</table>{{else}}<p class="muted">No check-ins yet.</p>{{end}}

<p class="no-print"><button onclick="window.print()">Print / Save as PDF</button></p>
</body>
</html>
`
