package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	ensureUsersTable()
	ensureServicesTable()
	ensureApplicationsTable()
	ensureProgressTable()
	ensureMessagesTable()
	ensureTransfersTable()
	ensureReportsTable()
	ensureNotificationsTable()
	ensurePasswordResetTable()
	ensureAdminLogsTable()
}

func ensureUsersTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS users (
            id UUID PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            first_name TEXT NOT NULL,
            last_name TEXT NOT NULL DEFAULT '',
            phone_number TEXT NULL,
            biography TEXT NULL,
            role TEXT NOT NULL DEFAULT 'user' CHECK (role IN ('user','admin')),
            time_balance NUMERIC(5,2) NOT NULL DEFAULT 1.0 CHECK (time_balance >= 0),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            last_login TIMESTAMP WITH TIME ZONE NULL
        );
    `)
	if err != nil {
		log.Printf("failed to create users table: %v", err)
	}
}

func ensureServicesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS services (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            service_type TEXT NOT NULL CHECK (service_type IN ('offer','need')),
            title TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            hours_required NUMERIC(4,2) NOT NULL CHECK (hours_required > 0),
            location_type TEXT NOT NULL DEFAULT 'online' CHECK (location_type IN ('online','in-person','both')),
            location_address TEXT NULL,
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','in_progress','completed','cancelled','expired')),
            service_date DATE NULL,
            start_time TIME NULL,
            end_time TIME NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_services_status ON services(status);
        CREATE INDEX IF NOT EXISTS idx_services_user ON services(user_id);
    `)
	if err != nil {
		log.Printf("failed to create services table: %v", err)
	}
}

func ensureApplicationsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_applications (
            id UUID PRIMARY KEY,
            service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
            applicant_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending','accepted','rejected','cancelled','withdrawn')),
            message TEXT NULL,
            applied_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_applications_service ON service_applications(service_id);
        CREATE INDEX IF NOT EXISTS idx_applications_applicant ON service_applications(applicant_id);
    `)
	if err != nil {
		log.Printf("failed to create service_applications table: %v", err)
	}
}

func ensureProgressTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS service_progress (
            id UUID PRIMARY KEY,
            service_id UUID NOT NULL REFERENCES services(id) ON DELETE CASCADE,
            application_id UUID NOT NULL UNIQUE REFERENCES service_applications(id) ON DELETE CASCADE,
            provider_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            consumer_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            hours NUMERIC(4,2) NOT NULL,
            status TEXT NOT NULL DEFAULT 'selected' CHECK (status IN ('selected','scheduled','in_progress','awaiting_confirmation','completed','cancelled')),
            scheduled_date DATE NULL,
            scheduled_time TIME NULL,
            agreed_location TEXT NULL,
            provider_start_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            consumer_start_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
            provider_start_confirmed_at TIMESTAMP WITH TIME ZONE NULL,
            consumer_start_confirmed_at TIMESTAMP WITH TIME ZONE NULL,
            provider_survey_submitted BOOLEAN NOT NULL DEFAULT FALSE,
            consumer_survey_submitted BOOLEAN NOT NULL DEFAULT FALSE,
            provider_survey_submitted_at TIMESTAMP WITH TIME ZONE NULL,
            consumer_survey_submitted_at TIMESTAMP WITH TIME ZONE NULL,
            provider_survey_data JSONB NULL,
            consumer_survey_data JSONB NULL,
            survey_deadline TIMESTAMP WITH TIME ZONE NULL,
            selected_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            scheduled_at TIMESTAMP WITH TIME ZONE NULL,
            started_at TIMESTAMP WITH TIME ZONE NULL,
            completed_at TIMESTAMP WITH TIME ZONE NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_progress_status ON service_progress(status);
        CREATE INDEX IF NOT EXISTS idx_progress_provider ON service_progress(provider_id);
        CREATE INDEX IF NOT EXISTS idx_progress_consumer ON service_progress(consumer_id);
        CREATE INDEX IF NOT EXISTS idx_progress_deadline ON service_progress(survey_deadline) WHERE status = 'awaiting_confirmation';
    `)
	if err != nil {
		log.Printf("failed to create service_progress table: %v", err)
	}
}

func ensureMessagesTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            application_id UUID NOT NULL REFERENCES service_applications(id) ON DELETE CASCADE,
            sender_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            receiver_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            body TEXT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'text' CHECK (message_type IN ('text','schedule_proposal')),
            proposal_date DATE NULL,
            proposal_start_time TIME NULL,
            proposal_end_time TIME NULL,
            proposal_location TEXT NULL,
            proposal_status TEXT NULL CHECK (proposal_status IN ('pending','accepted','rejected','cancelled')),
            read_at TIMESTAMP WITH TIME ZONE NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_messages_application ON messages(application_id, created_at);
        CREATE UNIQUE INDEX IF NOT EXISTS uq_messages_pending_proposal
            ON messages(application_id)
            WHERE message_type = 'schedule_proposal' AND proposal_status = 'pending';
    `)
	if err != nil {
		log.Printf("failed to create messages table: %v", err)
	}
}

func ensureTransfersTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS transfers (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            hours NUMERIC(4,2) NOT NULL,
            direction TEXT NOT NULL CHECK (direction IN ('debit','credit')),
            reference UUID NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
        CREATE INDEX IF NOT EXISTS idx_transfers_user ON transfers(user_id, created_at);
    `)
	if err != nil {
		log.Printf("failed to create transfers table: %v", err)
	}
}

func ensureReportsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS reports (
            id UUID PRIMARY KEY,
            reporter_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            reported_user_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            content_type TEXT NOT NULL CHECK (content_type IN ('service','message','user','progress')),
            content_id UUID NULL,
            reason TEXT NOT NULL,
            description TEXT NULL,
            status TEXT NOT NULL DEFAULT 'open' CHECK (status IN ('open','resolved','dismissed')),
            resolved_by UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            resolved_at TIMESTAMP WITH TIME ZONE NULL,
            resolution_notes TEXT NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            UNIQUE (reporter_id, content_type, content_id)
        );
        CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
    `)
	if err != nil {
		log.Printf("failed to create reports table: %v", err)
	}
}

func ensureNotificationsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS notifications (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            type TEXT NOT NULL,
            title TEXT NOT NULL,
            body TEXT,
            reference UUID NULL,
            metadata JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
            read_at TIMESTAMP WITH TIME ZONE NULL
        );
        CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at);
        CREATE INDEX IF NOT EXISTS idx_notifications_user_unread ON notifications(user_id) WHERE read_at IS NULL;
    `)
	if err != nil {
		log.Printf("failed to create notifications table: %v", err)
	}
}

func ensurePasswordResetTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS password_reset_tokens (
            id UUID PRIMARY KEY,
            user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            token TEXT NOT NULL UNIQUE,
            expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
            used BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
    `)
	if err != nil {
		log.Printf("failed to create password_reset_tokens table: %v", err)
	}
}

func ensureAdminLogsTable() {
	ctx := context.Background()
	_, err := Conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS admin_logs (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            admin_id UUID NULL REFERENCES users(id) ON DELETE SET NULL,
            action TEXT NOT NULL,
            target_type TEXT NOT NULL,
            target_id UUID NULL,
            details JSONB NULL,
            created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
        );
    `)
	if err != nil {
		log.Printf("failed to create admin_logs table: %v", err)
	}
}
