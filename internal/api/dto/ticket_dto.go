package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketRequest is the body of ticket create and update calls. Every field is optional.
type TicketRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Location      string `json:"location"`
	AvailableTime string `json:"availableTime"`
	Subject       string `json:"subject"`
	Description   string `json:"description"`
}

// Fields converts the request into the editable part of a ticket.
func (r TicketRequest) Fields() domain.TicketFields {
	return domain.TicketFields{
		Name:          r.Name,
		Email:         r.Email,
		Phone:         r.Phone,
		Location:      r.Location,
		AvailableTime: r.AvailableTime,
		Subject:       r.Subject,
		Description:   r.Description,
	}
}

// TicketResponse is the wire form of a ticket.
type TicketResponse struct {
	ID            string              `json:"id"`
	UserID        string              `json:"userId"`
	Status        domain.TicketStatus `json:"status"`
	Name          string              `json:"name"`
	Email         string              `json:"email"`
	Phone         string              `json:"phone"`
	Location      string              `json:"location"`
	AvailableTime string              `json:"availableTime"`
	Subject       string              `json:"subject"`
	Description   string              `json:"description"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewTicketResponse maps a domain ticket.
func NewTicketResponse(t domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		UserID:        t.OwnerID,
		Status:        t.Status,
		Name:          t.Name,
		Email:         t.Email,
		Phone:         t.Phone,
		Location:      t.Location,
		AvailableTime: t.AvailableTime,
		Subject:       t.Subject,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// NewTicketResponses maps a ticket list; the result is never nil.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, NewTicketResponse(t))
	}
	return out
}

// TicketOwnerResponse is the owner projection on recent dashboard tickets.
type TicketOwnerResponse struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Picture string `json:"picture"`
}

// RecentTicketResponse is a ticket plus its owner, null when the owner no longer exists.
type RecentTicketResponse struct {
	TicketResponse
	User *TicketOwnerResponse `json:"user"`
}

// OverviewResponse block.
type OverviewResponse struct {
	TotalTickets   int `json:"totalTickets"`
	OpenTickets    int `json:"openTickets"`
	ClosedTickets  int `json:"closedTickets"`
	ResolutionRate int `json:"resolutionRate"`
}

// TodayResponse block.
type TodayResponse struct {
	NewTickets      int `json:"newTickets"`
	ResolvedTickets int `json:"resolvedTickets"`
	ActiveTickets   int `json:"activeTickets"`
}

// DailyStatResponse is one trend bucket.
type DailyStatResponse struct {
	Date   string `json:"date"`
	Total  int    `json:"total"`
	Open   int    `json:"open"`
	Closed int    `json:"closed"`
}

// StatusCountResponse mirrors a grouped count: {"status":1,"_count":{"status":2}}.
type StatusCountResponse struct {
	Status domain.TicketStatus `json:"status"`
	Count  struct {
		Status int `json:"status"`
	} `json:"_count"`
}

// DashboardResponse is the data block of the dashboard endpoint.
type DashboardResponse struct {
	Overview        OverviewResponse       `json:"overview"`
	Today           TodayResponse          `json:"today"`
	RecentTickets   []RecentTicketResponse `json:"recentTickets"`
	DailyStats      []DailyStatResponse    `json:"dailyStats"`
	TicketsByStatus []StatusCountResponse  `json:"ticketsByStatus"`
}

// NewDashboardResponse maps a dashboard snapshot.
func NewDashboardResponse(stats domain.DashboardStats) DashboardResponse {
	resp := DashboardResponse{
		Overview: OverviewResponse{
			TotalTickets:   stats.Overview.TotalTickets,
			OpenTickets:    stats.Overview.OpenTickets,
			ClosedTickets:  stats.Overview.ClosedTickets,
			ResolutionRate: stats.Overview.ResolutionRate,
		},
		Today: TodayResponse{
			NewTickets:      stats.Today.NewTickets,
			ResolvedTickets: stats.Today.ResolvedTickets,
			ActiveTickets:   stats.Today.ActiveTickets,
		},
		RecentTickets:   make([]RecentTicketResponse, 0, len(stats.RecentTickets)),
		DailyStats:      make([]DailyStatResponse, 0, len(stats.DailyStats)),
		TicketsByStatus: make([]StatusCountResponse, 0, len(stats.TicketsByStatus)),
	}

	for _, recent := range stats.RecentTickets {
		entry := RecentTicketResponse{TicketResponse: NewTicketResponse(recent.Ticket)}
		if recent.Owner != nil {
			entry.User = &TicketOwnerResponse{
				Name:    recent.Owner.Name,
				Email:   recent.Owner.Email,
				Picture: recent.Owner.Picture,
			}
		}
		resp.RecentTickets = append(resp.RecentTickets, entry)
	}
	for _, day := range stats.DailyStats {
		resp.DailyStats = append(resp.DailyStats, DailyStatResponse(day))
	}
	for _, group := range stats.TicketsByStatus {
		entry := StatusCountResponse{Status: group.Status}
		entry.Count.Status = group.Count
		resp.TicketsByStatus = append(resp.TicketsByStatus, entry)
	}
	return resp
}
