package service

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_number TEXT NOT NULL UNIQUE,
		invoice_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'draft',
		client_company_name TEXT NOT NULL,
		contact_person_name TEXT NOT NULL,
		street_address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip_code TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		performance_date TEXT NOT NULL,
		event_name TEXT NOT NULL,
		first_set_start_time TEXT NOT NULL DEFAULT '',
		number_of_sets INTEGER NOT NULL DEFAULT 3,
		set_length INTEGER NOT NULL DEFAULT 60,
		break_length INTEGER NOT NULL DEFAULT 30,
		load_in_time TEXT NOT NULL DEFAULT '',
		venue_name TEXT NOT NULL DEFAULT '',
		venue_address TEXT NOT NULL DEFAULT '',
		venue_city TEXT NOT NULL DEFAULT '',
		venue_state TEXT NOT NULL DEFAULT '',
		venue_zip TEXT NOT NULL DEFAULT '',
		venue_contact_person TEXT NOT NULL DEFAULT '',
		venue_phone TEXT NOT NULL DEFAULT '',
		venue_email TEXT NOT NULL DEFAULT '',
		inside_outside TEXT NOT NULL DEFAULT 'inside',
		stage_available TEXT NOT NULL DEFAULT 'tbd',
		power_requirements TEXT NOT NULL DEFAULT '',
		loadin_location TEXT NOT NULL DEFAULT '',
		performance_location TEXT NOT NULL DEFAULT '',
		sound_system TEXT NOT NULL DEFAULT 'we_provide',
		lights TEXT NOT NULL DEFAULT 'we_provide',
		music_between_sets TEXT NOT NULL DEFAULT 'we_provide',
		outside_production BOOLEAN NOT NULL DEFAULT 0,
		outside_production_notes TEXT NOT NULL DEFAULT '',
		preferred_genre TEXT NOT NULL DEFAULT '',
		accommodations_provided TEXT NOT NULL DEFAULT '',
		accommodation_cost_offset REAL NOT NULL DEFAULT 0,
		mileage_travel_fee REAL NOT NULL DEFAULT 0,
		early_loadin_required BOOLEAN NOT NULL DEFAULT 0,
		early_loadin_hours REAL NOT NULL DEFAULT 0,
		base_compensation REAL NOT NULL DEFAULT 0,
		deposit_percentage REAL NOT NULL DEFAULT 30,
		additional_compensation TEXT NOT NULL DEFAULT '',
		services_description TEXT NOT NULL DEFAULT '',
		attire TEXT NOT NULL DEFAULT '',
		audience_rating TEXT NOT NULL DEFAULT 'pg-13',
		cover_letter_message TEXT NOT NULL DEFAULT '',
		additional_contract_notes TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL UNIQUE,
		token_expires_at DATETIME NOT NULL,
		client_signature TEXT NOT NULL DEFAULT '',
		client_signed_at DATETIME,
		client_signed_ip TEXT NOT NULL DEFAULT '',
		client_signed_name TEXT NOT NULL DEFAULT '',
		cover_letter_path TEXT NOT NULL DEFAULT '',
		contract_path TEXT NOT NULL DEFAULT '',
		invoice_path TEXT NOT NULL DEFAULT '',
		signed_contract_path TEXT NOT NULL DEFAULT '',
		deposit_paid BOOLEAN NOT NULL DEFAULT 0,
		deposit_payment_method TEXT NOT NULL DEFAULT '',
		deposit_paid_at DATETIME,
		deposit_amount_received REAL NOT NULL DEFAULT 0,
		deposit_payment_notes TEXT NOT NULL DEFAULT '',
		balance_paid BOOLEAN NOT NULL DEFAULT 0,
		balance_payment_method TEXT NOT NULL DEFAULT '',
		balance_paid_at DATETIME,
		balance_amount_received REAL NOT NULL DEFAULT 0,
		balance_payment_notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		sent_at DATETIME,
		viewed_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_performance_date ON contracts(performance_date)`,
	`CREATE TABLE IF NOT EXISTS contract_line_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id INTEGER NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		quantity REAL NOT NULL DEFAULT 1,
		unit_price REAL NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_contract ON contract_line_items(contract_id)`,
	`CREATE TABLE IF NOT EXISTS contract_activity_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		contract_id INTEGER NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_contract ON contract_activity_log(contract_id)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		id BIGSERIAL PRIMARY KEY,
		contract_number TEXT NOT NULL UNIQUE,
		invoice_number TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'draft',
		client_company_name TEXT NOT NULL,
		contact_person_name TEXT NOT NULL,
		street_address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		zip_code TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL,
		performance_date TEXT NOT NULL,
		event_name TEXT NOT NULL,
		first_set_start_time TEXT NOT NULL DEFAULT '',
		number_of_sets INTEGER NOT NULL DEFAULT 3,
		set_length INTEGER NOT NULL DEFAULT 60,
		break_length INTEGER NOT NULL DEFAULT 30,
		load_in_time TEXT NOT NULL DEFAULT '',
		venue_name TEXT NOT NULL DEFAULT '',
		venue_address TEXT NOT NULL DEFAULT '',
		venue_city TEXT NOT NULL DEFAULT '',
		venue_state TEXT NOT NULL DEFAULT '',
		venue_zip TEXT NOT NULL DEFAULT '',
		venue_contact_person TEXT NOT NULL DEFAULT '',
		venue_phone TEXT NOT NULL DEFAULT '',
		venue_email TEXT NOT NULL DEFAULT '',
		inside_outside TEXT NOT NULL DEFAULT 'inside',
		stage_available TEXT NOT NULL DEFAULT 'tbd',
		power_requirements TEXT NOT NULL DEFAULT '',
		loadin_location TEXT NOT NULL DEFAULT '',
		performance_location TEXT NOT NULL DEFAULT '',
		sound_system TEXT NOT NULL DEFAULT 'we_provide',
		lights TEXT NOT NULL DEFAULT 'we_provide',
		music_between_sets TEXT NOT NULL DEFAULT 'we_provide',
		outside_production BOOLEAN NOT NULL DEFAULT FALSE,
		outside_production_notes TEXT NOT NULL DEFAULT '',
		preferred_genre TEXT NOT NULL DEFAULT '',
		accommodations_provided TEXT NOT NULL DEFAULT '',
		accommodation_cost_offset DOUBLE PRECISION NOT NULL DEFAULT 0,
		mileage_travel_fee DOUBLE PRECISION NOT NULL DEFAULT 0,
		early_loadin_required BOOLEAN NOT NULL DEFAULT FALSE,
		early_loadin_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
		base_compensation DOUBLE PRECISION NOT NULL DEFAULT 0,
		deposit_percentage DOUBLE PRECISION NOT NULL DEFAULT 30,
		additional_compensation TEXT NOT NULL DEFAULT '',
		services_description TEXT NOT NULL DEFAULT '',
		attire TEXT NOT NULL DEFAULT '',
		audience_rating TEXT NOT NULL DEFAULT 'pg-13',
		cover_letter_message TEXT NOT NULL DEFAULT '',
		additional_contract_notes TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL UNIQUE,
		token_expires_at TIMESTAMPTZ NOT NULL,
		client_signature TEXT NOT NULL DEFAULT '',
		client_signed_at TIMESTAMPTZ,
		client_signed_ip TEXT NOT NULL DEFAULT '',
		client_signed_name TEXT NOT NULL DEFAULT '',
		cover_letter_path TEXT NOT NULL DEFAULT '',
		contract_path TEXT NOT NULL DEFAULT '',
		invoice_path TEXT NOT NULL DEFAULT '',
		signed_contract_path TEXT NOT NULL DEFAULT '',
		deposit_paid BOOLEAN NOT NULL DEFAULT FALSE,
		deposit_payment_method TEXT NOT NULL DEFAULT '',
		deposit_paid_at TIMESTAMPTZ,
		deposit_amount_received DOUBLE PRECISION NOT NULL DEFAULT 0,
		deposit_payment_notes TEXT NOT NULL DEFAULT '',
		balance_paid BOOLEAN NOT NULL DEFAULT FALSE,
		balance_payment_method TEXT NOT NULL DEFAULT '',
		balance_paid_at TIMESTAMPTZ,
		balance_amount_received DOUBLE PRECISION NOT NULL DEFAULT 0,
		balance_payment_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ,
		viewed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_status ON contracts(status)`,
	`CREATE INDEX IF NOT EXISTS idx_contracts_performance_date ON contracts(performance_date)`,
	`CREATE TABLE IF NOT EXISTS contract_line_items (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		description TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL DEFAULT 1,
		unit_price DOUBLE PRECISION NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_contract ON contract_line_items(contract_id)`,
	`CREATE TABLE IF NOT EXISTS contract_activity_log (
		id BIGSERIAL PRIMARY KEY,
		contract_id BIGINT NOT NULL REFERENCES contracts(id) ON DELETE CASCADE,
		action TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		actor TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_activity_contract ON contract_activity_log(contract_id)`,
}
