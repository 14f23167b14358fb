package duckdb

const ClientsSchema = `
	CREATE TABLE IF NOT EXISTS clients (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		status VARCHAR NOT NULL DEFAULT 'active',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		churned_at TIMESTAMP NULL,
		last_activity_at TIMESTAMP NULL
	);
`

const TicketsSchema = `
	CREATE TABLE IF NOT EXISTS tickets (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		client_id BIGINT,
		subject VARCHAR NOT NULL DEFAULT '',
		priority VARCHAR NOT NULL DEFAULT 'medium',
		status VARCHAR NOT NULL DEFAULT 'open',
		assigned_to BIGINT NULL,
		is_escalated BOOLEAN NOT NULL DEFAULT false,
		satisfaction_rating INTEGER NULL,
		created_at TIMESTAMP NOT NULL,
		first_response_at TIMESTAMP NULL,
		resolved_at TIMESTAMP NULL
	);
`

const InvoicesSchema = `
	CREATE TABLE IF NOT EXISTS invoices (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		number VARCHAR NOT NULL,
		amount DOUBLE NOT NULL DEFAULT 0,
		status VARCHAR NOT NULL DEFAULT 'draft',
		is_recurring BOOLEAN NOT NULL DEFAULT false,
		issued_at TIMESTAMP NOT NULL,
		due_at TIMESTAMP NOT NULL,
		paid_at TIMESTAMP NULL
	);
`

const PaymentsSchema = `
	CREATE TABLE IF NOT EXISTS payments (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		client_id BIGINT NOT NULL,
		invoice_id BIGINT NULL,
		amount DOUBLE NOT NULL,
		paid_at TIMESTAMP NOT NULL
	);
`

const AssetsSchema = `
	CREATE TABLE IF NOT EXISTS assets (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		client_id BIGINT,
		name VARCHAR NOT NULL,
		asset_type VARCHAR NOT NULL,
		status VARCHAR NOT NULL DEFAULT 'active',
		warranty_expires_at TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL
	);
`

const ProjectsSchema = `
	CREATE TABLE IF NOT EXISTS projects (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		client_id BIGINT,
		name VARCHAR NOT NULL,
		status VARCHAR NOT NULL DEFAULT 'planning',
		budget DOUBLE NOT NULL DEFAULT 0,
		spent DOUBLE NOT NULL DEFAULT 0,
		due_date TIMESTAMP NULL,
		completed_at TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL
	);
`

const UsersSchema = `
	CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		email VARCHAR NOT NULL,
		role VARCHAR NOT NULL DEFAULT 'technician',
		is_active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

const TimeEntriesSchema = `
	CREATE TABLE IF NOT EXISTS time_entries (
		id BIGINT PRIMARY KEY,
		company_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		ticket_id BIGINT NULL,
		project_id BIGINT NULL,
		hours DOUBLE NOT NULL,
		billable BOOLEAN NOT NULL DEFAULT true,
		entry_date TIMESTAMP NOT NULL
	);
`

const SLAPoliciesSchema = `
	CREATE TABLE IF NOT EXISTS sla_policies (
		company_id BIGINT NOT NULL,
		priority VARCHAR NOT NULL DEFAULT '',
		first_response_minutes INTEGER NOT NULL,
		resolution_minutes INTEGER NOT NULL,
		PRIMARY KEY (company_id, priority)
	);
`

const ReportSchedulesSchema = `
	CREATE SEQUENCE IF NOT EXISTS report_schedules_id_seq START 1;
	CREATE TABLE IF NOT EXISTS report_schedules (
		id BIGINT PRIMARY KEY DEFAULT nextval('report_schedules_id_seq'),
		company_id BIGINT NOT NULL,
		name VARCHAR NOT NULL,
		report_type VARCHAR NOT NULL,
		frequency VARCHAR NOT NULL,
		parameters VARCHAR NOT NULL DEFAULT '{}',
		recipients VARCHAR NOT NULL DEFAULT '[]',
		format VARCHAR NOT NULL,
		delivery_options VARCHAR NOT NULL DEFAULT '{}',
		next_run_at TIMESTAMP NOT NULL,
		last_run_at TIMESTAMP NULL,
		is_active BOOLEAN NOT NULL DEFAULT true,
		failure_count INTEGER NOT NULL DEFAULT 0,
		locked_until TIMESTAMP NULL,
		last_error VARCHAR NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
`

const RunHistorySchema = `
	CREATE TABLE IF NOT EXISTS run_history (
		id VARCHAR PRIMARY KEY,
		schedule_id BIGINT NOT NULL,
		company_id BIGINT NOT NULL,
		status VARCHAR NOT NULL,
		period_start TIMESTAMP NOT NULL,
		period_end TIMESTAMP NOT NULL,
		recipients_notified INTEGER NOT NULL DEFAULT 0,
		file_path VARCHAR NOT NULL DEFAULT '',
		error VARCHAR NULL,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL
	);
`

var bootQueries = []string{
	ClientsSchema,
	TicketsSchema,
	InvoicesSchema,
	PaymentsSchema,
	AssetsSchema,
	ProjectsSchema,
	UsersSchema,
	TimeEntriesSchema,
	SLAPoliciesSchema,
	ReportSchedulesSchema,
	RunHistorySchema,
}
