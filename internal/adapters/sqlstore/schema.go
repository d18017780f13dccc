package sqlstore

const postgresSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                       UUID PRIMARY KEY,
    email                    VARCHAR(254) NOT NULL UNIQUE,
    first_name               VARCHAR(15) NOT NULL,
    last_name                VARCHAR(255) NOT NULL,
    phone_number             VARCHAR(20) NOT NULL,
    password_hash            VARCHAR(128) NOT NULL,
    is_active                BOOLEAN NOT NULL DEFAULT TRUE,
    is_email_verified        BOOLEAN NOT NULL DEFAULT FALSE,
    email_verification_token VARCHAR(100),
    password_reset_token     VARCHAR(100),
    stripe_customer_id       VARCHAR(255),
    created_at               TIMESTAMPTZ NOT NULL,
    updated_at               TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_tokens (
    key        VARCHAR(40) PRIMARY KEY,
    user_id    UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
    id                    UUID PRIMARY KEY,
    user_id               UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    name                  VARCHAR(255) NOT NULL,
    location              VARCHAR(50),
    primary_ships_country VARCHAR(2) NOT NULL,
    created_at            TIMESTAMPTZ NOT NULL,
    updated_at            TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS shipping_needs (
    id           UUID PRIMARY KEY,
    user_id      UUID NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    mode         JSONB NOT NULL,
    average_ftl  VARCHAR(10) NOT NULL,
    trailer_type JSONB NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL,
    updated_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS cities (
    id           BIGINT PRIMARY KEY,
    name         VARCHAR(255) NOT NULL,
    region_code  VARCHAR(20) NOT NULL DEFAULT '',
    country_code VARCHAR(20) NOT NULL DEFAULT '',
    latitude     DOUBLE PRECISION,
    longitude    DOUBLE PRECISION
);

CREATE TABLE IF NOT EXISTS shipments (
    id                UUID PRIMARY KEY,
    user_id           UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status            VARCHAR(20) NOT NULL,
    equipment         VARCHAR(20) NOT NULL,
    pickup_date       DATE NOT NULL,
    dropoff_date      DATE NOT NULL,
    base_price        NUMERIC(10,2),
    driver_assist     BOOLEAN NOT NULL DEFAULT FALSE,
    driver_assist_fee NUMERIC(10,2) NOT NULL,
    miles             INTEGER,
    min_transit_time  INTEGER,
    reference_number  VARCHAR(500) NOT NULL DEFAULT '',
    weight            INTEGER,
    commodity         VARCHAR(500) NOT NULL DEFAULT '',
    packaging         INTEGER,
    packaging_type    VARCHAR(500) NOT NULL DEFAULT '',
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shipments_user_created ON shipments(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS locations (
    id                    BIGSERIAL PRIMARY KEY,
    shipment_id           UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
    location_type         VARCHAR(20) NOT NULL,
    facility_name         VARCHAR(200) NOT NULL DEFAULT '',
    facility_address      VARCHAR(300) NOT NULL DEFAULT '',
    city_id               BIGINT REFERENCES cities(id),
    state                 VARCHAR(100) NOT NULL DEFAULT '',
    zip_code              VARCHAR(20) NOT NULL DEFAULT '',
    contact_name          VARCHAR(200) NOT NULL DEFAULT '',
    phone_number          VARCHAR(20) NOT NULL DEFAULT '',
    email                 VARCHAR(254) NOT NULL DEFAULT '',
    scheduling_preference VARCHAR(20) NOT NULL DEFAULT 'first_come',
    location_number       VARCHAR(500) NOT NULL DEFAULT '',
    additional_notes      TEXT NOT NULL DEFAULT '',
    created_at            TIMESTAMPTZ NOT NULL,
    UNIQUE (shipment_id, location_type)
);

CREATE TABLE IF NOT EXISTS price_calculations (
    id               BIGSERIAL PRIMARY KEY,
    pickup_city_id   BIGINT REFERENCES cities(id) ON DELETE CASCADE,
    dropoff_city_id  BIGINT REFERENCES cities(id) ON DELETE CASCADE,
    equipment        VARCHAR(20) NOT NULL,
    miles            INTEGER NOT NULL,
    base_price       NUMERIC(10,2) NOT NULL,
    min_transit_time INTEGER NOT NULL,
    rate_per_mile    NUMERIC(5,2) NOT NULL,
    base_fee         NUMERIC(10,2) NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    UNIQUE (pickup_city_id, dropoff_city_id, equipment)
);

CREATE TABLE IF NOT EXISTS status_history (
    id            BIGSERIAL PRIMARY KEY,
    shipment_id   UUID NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
    old_status    VARCHAR(20) NOT NULL,
    new_status    VARCHAR(20) NOT NULL,
    changed_by    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    change_reason TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id                BIGSERIAL PRIMARY KEY,
    shipment_id       UUID NOT NULL UNIQUE REFERENCES shipments(id) ON DELETE CASCADE,
    invoice_number    VARCHAR(50) NOT NULL UNIQUE,
    status            VARCHAR(20) NOT NULL,
    amount            NUMERIC(10,2) NOT NULL,
    driver_assist_fee NUMERIC(10,2) NOT NULL,
    total_amount      NUMERIC(10,2) NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL,
    paid_at           TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS payments (
    id                       BIGSERIAL PRIMARY KEY,
    invoice_id               BIGINT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    stripe_payment_intent_id VARCHAR(255) UNIQUE,
    stripe_payment_method_id VARCHAR(255),
    amount                   NUMERIC(10,2) NOT NULL,
    status                   VARCHAR(20) NOT NULL,
    failure_reason           TEXT NOT NULL DEFAULT '',
    client_secret            VARCHAR(255) NOT NULL DEFAULT '',
    created_at               TIMESTAMPTZ NOT NULL,
    updated_at               TIMESTAMPTZ NOT NULL
);
`

// SQLite has no UUID, NUMERIC precision or JSONB; ids and json live in TEXT,
// money in TEXT so cents survive, timestamps in fixed-width TEXT so they sort.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS users (
    id                       TEXT PRIMARY KEY,
    email                    TEXT NOT NULL UNIQUE,
    first_name               TEXT NOT NULL,
    last_name                TEXT NOT NULL,
    phone_number             TEXT NOT NULL,
    password_hash            TEXT NOT NULL,
    is_active                INTEGER NOT NULL DEFAULT 1,
    is_email_verified        INTEGER NOT NULL DEFAULT 0,
    email_verification_token TEXT,
    password_reset_token     TEXT,
    stripe_customer_id       TEXT,
    created_at               TEXT NOT NULL,
    updated_at               TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS auth_tokens (
    key        TEXT PRIMARY KEY,
    user_id    TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS companies (
    id                    TEXT PRIMARY KEY,
    user_id               TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    name                  TEXT NOT NULL,
    location              TEXT,
    primary_ships_country TEXT NOT NULL,
    created_at            TEXT NOT NULL,
    updated_at            TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS shipping_needs (
    id           TEXT PRIMARY KEY,
    user_id      TEXT NOT NULL UNIQUE REFERENCES users(id) ON DELETE CASCADE,
    mode         TEXT NOT NULL,
    average_ftl  TEXT NOT NULL,
    trailer_type TEXT NOT NULL,
    created_at   TEXT NOT NULL,
    updated_at   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS cities (
    id           INTEGER PRIMARY KEY,
    name         TEXT NOT NULL,
    region_code  TEXT NOT NULL DEFAULT '',
    country_code TEXT NOT NULL DEFAULT '',
    latitude     REAL,
    longitude    REAL
);

CREATE TABLE IF NOT EXISTS shipments (
    id                TEXT PRIMARY KEY,
    user_id           TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    status            TEXT NOT NULL,
    equipment         TEXT NOT NULL,
    pickup_date       TEXT NOT NULL,
    dropoff_date      TEXT NOT NULL,
    base_price        TEXT,
    driver_assist     INTEGER NOT NULL DEFAULT 0,
    driver_assist_fee TEXT NOT NULL,
    miles             INTEGER,
    min_transit_time  INTEGER,
    reference_number  TEXT NOT NULL DEFAULT '',
    weight            INTEGER,
    commodity         TEXT NOT NULL DEFAULT '',
    packaging         INTEGER,
    packaging_type    TEXT NOT NULL DEFAULT '',
    created_at        TEXT NOT NULL,
    updated_at        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shipments_user_created ON shipments(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS locations (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    shipment_id           TEXT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
    location_type         TEXT NOT NULL,
    facility_name         TEXT NOT NULL DEFAULT '',
    facility_address      TEXT NOT NULL DEFAULT '',
    city_id               INTEGER REFERENCES cities(id),
    state                 TEXT NOT NULL DEFAULT '',
    zip_code              TEXT NOT NULL DEFAULT '',
    contact_name          TEXT NOT NULL DEFAULT '',
    phone_number          TEXT NOT NULL DEFAULT '',
    email                 TEXT NOT NULL DEFAULT '',
    scheduling_preference TEXT NOT NULL DEFAULT 'first_come',
    location_number       TEXT NOT NULL DEFAULT '',
    additional_notes      TEXT NOT NULL DEFAULT '',
    created_at            TEXT NOT NULL,
    UNIQUE (shipment_id, location_type)
);

CREATE TABLE IF NOT EXISTS price_calculations (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,
    pickup_city_id   INTEGER REFERENCES cities(id) ON DELETE CASCADE,
    dropoff_city_id  INTEGER REFERENCES cities(id) ON DELETE CASCADE,
    equipment        TEXT NOT NULL,
    miles            INTEGER NOT NULL,
    base_price       TEXT NOT NULL,
    min_transit_time INTEGER NOT NULL,
    rate_per_mile    TEXT NOT NULL,
    base_fee         TEXT NOT NULL,
    created_at       TEXT NOT NULL,
    UNIQUE (pickup_city_id, dropoff_city_id, equipment)
);

CREATE TABLE IF NOT EXISTS status_history (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    shipment_id   TEXT NOT NULL REFERENCES shipments(id) ON DELETE CASCADE,
    old_status    TEXT NOT NULL,
    new_status    TEXT NOT NULL,
    changed_by    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    change_reason TEXT NOT NULL DEFAULT '',
    created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS invoices (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    shipment_id       TEXT NOT NULL UNIQUE REFERENCES shipments(id) ON DELETE CASCADE,
    invoice_number    TEXT NOT NULL UNIQUE,
    status            TEXT NOT NULL,
    amount            TEXT NOT NULL,
    driver_assist_fee TEXT NOT NULL,
    total_amount      TEXT NOT NULL,
    created_at        TEXT NOT NULL,
    paid_at           TEXT
);

CREATE TABLE IF NOT EXISTS payments (
    id                       INTEGER PRIMARY KEY AUTOINCREMENT,
    invoice_id               INTEGER NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
    stripe_payment_intent_id TEXT UNIQUE,
    stripe_payment_method_id TEXT,
    amount                   TEXT NOT NULL,
    status                   TEXT NOT NULL,
    failure_reason           TEXT NOT NULL DEFAULT '',
    client_secret            TEXT NOT NULL DEFAULT '',
    created_at               TEXT NOT NULL,
    updated_at               TEXT NOT NULL
);
`
