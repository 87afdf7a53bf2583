package domain

import "time"

// DashboardOverview summarizes the whole ticket set.
type DashboardOverview struct {
	TotalTickets   int
	OpenTickets    int
	ClosedTickets  int
	ResolutionRate int
}

// DashboardToday summarizes tickets created during the current calendar day.
type DashboardToday struct {
	NewTickets      int
	ResolvedTickets int
	ActiveTickets   int
}

// RecentTicket pairs a ticket with its owner's profile. Owner is nil when the user is gone.
type RecentTicket struct {
	Ticket Ticket
	Owner  *UserProfile
}

// StatusCount is one group of the status breakdown.
type StatusCount struct {
	Status TicketStatus
	Count  int
}

// DailyStat is one calendar-day bucket of the trend series.
type DailyStat struct {
	Date   string
	Total  int
	Open   int
	Closed int
}

// DashboardStats is a read-only snapshot of helpdesk activity.
type DashboardStats struct {
	Overview        DashboardOverview
	Today           DashboardToday
	RecentTickets   []RecentTicket
	TicketsByStatus []StatusCount
	DailyStats      []DailyStat
	GeneratedAt     time.Time
}
