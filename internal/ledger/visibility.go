package ledger

import (
	"slices"
	"sort"
	"strings"

	"github.com/noah-isme/institute-ledger-api/internal/models"
)

// View selects one side of the payment stream relative to the viewer.
type View string

const (
	ViewReceived View = "received"
	ViewIssued   View = "issued"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Visible reports whether the actor's active role can see d in view.
func Visible(actor models.Actor, view View, d models.PaymentDetail) bool {
	switch view {
	case ViewReceived:
		return visibleReceived(actor, d)
	case ViewIssued:
		return visibleIssued(actor, d)
	default:
		return false
	}
}

func visibleReceived(actor models.Actor, d models.PaymentDetail) bool {
	switch actor.ActiveRole {
	case models.RoleAdministrator, models.RoleOffice:
		switch d.Kind {
		case models.PaymentTuition:
			return d.CourseKind == models.CourseRevenueShare
		case models.PaymentRental:
			return true
		default:
			return false
		}
	case models.RoleProfessor:
		grant := actor.GrantID(models.RoleProfessor)
		if grant == "" {
			return false
		}
		switch d.Kind {
		case models.PaymentTuition:
			return d.CourseKind == models.CourseRental && slices.Contains(d.CourseProfessorGrantIDs, grant)
		case models.PaymentCommission:
			return d.Commission != nil && d.Commission.ProfessorGrantID == grant
		default:
			return false
		}
	default:
		return false
	}
}

func visibleIssued(actor models.Actor, d models.PaymentDetail) bool {
	switch actor.ActiveRole {
	case models.RoleProfessor:
		grant := actor.GrantID(models.RoleProfessor)
		return grant != "" && d.Kind == models.PaymentRental && d.Rental != nil && d.Rental.ProfessorGrantID == grant
	case models.RoleStudent:
		return d.Kind == models.PaymentTuition && d.StudentPersonID == actor.PersonID
	case models.RoleAdministrator, models.RoleOffice:
		return d.Kind == models.PaymentCommission && d.RecordedBy == actor.PersonID
	default:
		return false
	}
}

// Project applies, in order, role visibility, free-text search, the category
// and month filters and descending date ordering, then cuts the requested page.
func Project(actor models.Actor, view View, details []models.PaymentDetail, query models.PaymentQuery) ([]models.PaymentDetail, models.Pagination) {
	visible := make([]models.PaymentDetail, 0, len(details))
	for _, d := range details {
		if Visible(actor, view, d) {
			visible = append(visible, d)
		}
	}

	if term := strings.ToLower(strings.TrimSpace(query.Search)); term != "" {
		matched := visible[:0]
		for _, d := range visible {
			if matchesSearch(d, term) {
				matched = append(matched, d)
			}
		}
		visible = matched
	}

	filtered := visible[:0]
	for _, d := range visible {
		if query.Category != "" && CategoryOf(d.Kind) != query.Category {
			continue
		}
		if query.Month != 0 && int(d.PaidAt.Month()) != query.Month {
			continue
		}
		if query.Year != 0 && d.PaidAt.Year() != query.Year {
			continue
		}
		filtered = append(filtered, d)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].PaidAt.After(filtered[j].PaidAt)
	})

	page, size := normalizePage(query.Page, query.PageSize)
	pagination := models.Pagination{Page: page, PageSize: size, TotalCount: len(filtered)}
	start := (page - 1) * size
	if start >= len(filtered) {
		return []models.PaymentDetail{}, pagination
	}
	end := start + size
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], pagination
}

func matchesSearch(d models.PaymentDetail, term string) bool {
	for _, field := range []string{d.CourseName, d.StudentName, d.ProfessorName, movementLabel(d)} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func normalizePage(page, size int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
