package postgres

const ClientsSchema = `
CREATE TABLE IF NOT EXISTS clients (
	id BIGINT PRIMARY KEY,
	company_id BIGINT NOT NULL,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
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
	subject TEXT NOT NULL DEFAULT '',
	priority TEXT NOT NULL DEFAULT 'medium',
	status TEXT NOT NULL DEFAULT 'open',
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
	number TEXT NOT NULL,
	amount DOUBLE PRECISION NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'draft',
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
	amount DOUBLE PRECISION NOT NULL,
	paid_at TIMESTAMP NOT NULL
);
`

const AssetsSchema = `
CREATE TABLE IF NOT EXISTS assets (
	id BIGINT PRIMARY KEY,
	company_id BIGINT NOT NULL,
	client_id BIGINT,
	name TEXT NOT NULL,
	asset_type TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',
	warranty_expires_at TIMESTAMP NULL,
	created_at TIMESTAMP NOT NULL
);
`

const ProjectsSchema = `
CREATE TABLE IF NOT EXISTS projects (
	id BIGINT PRIMARY KEY,
	company_id BIGINT NOT NULL,
	client_id BIGINT,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'planning',
	budget DOUBLE PRECISION NOT NULL DEFAULT 0,
	spent DOUBLE PRECISION NOT NULL DEFAULT 0,
	due_date TIMESTAMP NULL,
	completed_at TIMESTAMP NULL,
	created_at TIMESTAMP NOT NULL
);
`

const UsersSchema = `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT PRIMARY KEY,
	company_id BIGINT NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	role TEXT NOT NULL DEFAULT 'technician',
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
	hours DOUBLE PRECISION NOT NULL,
	billable BOOLEAN NOT NULL DEFAULT true,
	entry_date TIMESTAMP NOT NULL
);
`

const SLAPoliciesSchema = `
CREATE TABLE IF NOT EXISTS sla_policies (
	company_id BIGINT NOT NULL,
	priority TEXT NOT NULL DEFAULT '',
	first_response_minutes INTEGER NOT NULL,
	resolution_minutes INTEGER NOT NULL,
	PRIMARY KEY (company_id, priority)
);
`

const ReportSchedulesSchema = `
CREATE TABLE IF NOT EXISTS report_schedules (
	id BIGSERIAL PRIMARY KEY,
	company_id BIGINT NOT NULL,
	name TEXT NOT NULL,
	report_type TEXT NOT NULL,
	frequency TEXT NOT NULL,
	parameters TEXT NOT NULL DEFAULT '{}',
	recipients TEXT NOT NULL DEFAULT '[]',
	format TEXT NOT NULL,
	delivery_options TEXT NOT NULL DEFAULT '{}',
	next_run_at TIMESTAMP NOT NULL,
	last_run_at TIMESTAMP NULL,
	is_active BOOLEAN NOT NULL DEFAULT true,
	failure_count INTEGER NOT NULL DEFAULT 0,
	locked_until TIMESTAMP NULL,
	last_error TEXT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const RunHistorySchema = `
CREATE TABLE IF NOT EXISTS run_history (
	id TEXT PRIMARY KEY,
	schedule_id BIGINT NOT NULL,
	company_id BIGINT NOT NULL,
	status TEXT NOT NULL,
	period_start TIMESTAMP NOT NULL,
	period_end TIMESTAMP NOT NULL,
	recipients_notified INTEGER NOT NULL DEFAULT 0,
	file_path TEXT NOT NULL DEFAULT '',
	error TEXT NULL,
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
