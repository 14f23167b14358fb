package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DemoTenant owns the sample data written by SeedDemo.
const DemoTenant int64 = 1

type seedRow struct {
	query string
	args  []any
}

func at(s string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		panic(err)
	}
	return t
}

// SeedDemo loads a small, fixed dataset spanning December 2023 and
// January 2024 for DemoTenant, plus one foreign tenant.
func SeedDemo(ctx context.Context, db *sql.DB) error {
	const (
		client  = `INSERT INTO clients (id, company_id, name, status, created_at, churned_at, last_activity_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		user    = `INSERT INTO users (id, company_id, name, email, role, is_active, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		invoice = `INSERT INTO invoices (id, company_id, client_id, number, amount, status, is_recurring, issued_at, due_at, paid_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
		payment = `INSERT INTO payments (id, company_id, client_id, invoice_id, amount, paid_at) VALUES ($1, $2, $3, $4, $5, $6)`
		ticket  = `INSERT INTO tickets (id, company_id, client_id, subject, priority, status, assigned_to, is_escalated, satisfaction_rating, created_at, first_response_at, resolved_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
		entry   = `INSERT INTO time_entries (id, company_id, user_id, ticket_id, project_id, hours, billable, entry_date) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		asset   = `INSERT INTO assets (id, company_id, client_id, name, asset_type, status, warranty_expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		project = `INSERT INTO projects (id, company_id, client_id, name, status, budget, spent, due_date, completed_at, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	)
	const other int64 = 2

	rows := []seedRow{
		{client, []any{1, DemoTenant, "Acme Corp", "active", at("2023-01-10 00:00"), nil, nil}},
		{client, []any{2, DemoTenant, "Globex", "active", at("2023-06-01 00:00"), nil, nil}},
		{client, []any{3, DemoTenant, "Initech", "churned", at("2023-03-01 00:00"), at("2024-01-20 00:00"), nil}},
		{client, []any{10, other, "Umbrella", "active", at("2023-01-01 00:00"), nil, nil}},

		{user, []any{501, DemoTenant, "Alice Moreno", "alice@example.com", "technician", true, at("2022-05-01 00:00")}},
		{user, []any{502, DemoTenant, "Bob Chen", "bob@example.com", "technician", true, at("2022-08-01 00:00")}},

		{invoice, []any{101, DemoTenant, 1, "INV-101", 6000.0, "paid", true, at("2024-01-02 00:00"), at("2024-01-16 00:00"), at("2024-01-10 00:00")}},
		{invoice, []any{102, DemoTenant, 2, "INV-102", 4000.0, "paid", false, at("2024-01-05 00:00"), at("2024-01-19 00:00"), at("2024-01-15 00:00")}},
		{invoice, []any{103, DemoTenant, 2, "INV-103", 2500.0, "overdue", false, at("2023-12-01 00:00"), at("2023-12-15 00:00"), nil}},
		{invoice, []any{104, DemoTenant, 1, "INV-104", 8000.0, "paid", true, at("2023-12-01 00:00"), at("2023-12-15 00:00"), at("2023-12-10 00:00")}},

		{payment, []any{201, DemoTenant, 1, 101, 6000.0, at("2024-01-10 00:00")}},
		{payment, []any{202, DemoTenant, 2, 102, 4000.0, at("2024-01-15 00:00")}},
		{payment, []any{203, DemoTenant, 1, 104, 8000.0, at("2023-12-10 00:00")}},
		{payment, []any{210, other, 10, nil, 99999.0, at("2024-01-10 00:00")}},

		{ticket, []any{301, DemoTenant, 1, "VPN down", "high", "resolved", 501, false, 5, at("2024-01-05 09:00"), at("2024-01-05 09:30"), at("2024-01-05 12:00")}},
		{ticket, []any{302, DemoTenant, 2, "Printer offline", "low", "closed", 502, false, 3, at("2024-01-10 10:00"), at("2024-01-10 13:00"), at("2024-01-10 15:00")}},
		{ticket, []any{303, DemoTenant, 1, "Mailbox full", "medium", "open", 501, true, nil, at("2024-01-20 08:00"), nil, nil}},
		{ticket, []any{310, other, 10, "Other tenant", "high", "open", nil, false, nil, at("2024-01-12 08:00"), nil, nil}},

		{entry, []any{601, DemoTenant, 501, 301, nil, 6.0, true, at("2024-01-05 00:00")}},
		{entry, []any{602, DemoTenant, 501, 303, nil, 2.0, false, at("2024-01-06 00:00")}},
		{entry, []any{603, DemoTenant, 502, 302, nil, 4.0, true, at("2024-01-10 00:00")}},

		{asset, []any{701, DemoTenant, 1, "FW-01", "firewall", "active", at("2024-03-15 00:00"), at("2023-01-01 00:00")}},
		{asset, []any{702, DemoTenant, 2, "SRV-01", "server", "active", at("2025-01-01 00:00"), at("2023-06-01 00:00")}},
		{asset, []any{703, DemoTenant, 1, "LT-07", "laptop", "retired", nil, at("2022-01-01 00:00")}},

		{project, []any{801, DemoTenant, 1, "Cloud migration", "active", 10000.0, 4000.0, at("2024-03-01 00:00"), nil, at("2023-12-01 00:00")}},
		{project, []any{802, DemoTenant, 2, "Laptop rollout", "completed", 5000.0, 5500.0, at("2024-01-31 00:00"), at("2024-01-25 00:00"), at("2023-11-01 00:00")}},
	}

	for i, row := range rows {
		if _, err := db.ExecContext(ctx, row.query, row.args...); err != nil {
			return fmt.Errorf("seed row %d: %w", i, err)
		}
	}
	return nil
}
