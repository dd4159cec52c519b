package db

// Schema is the DDL for the replai database.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id                  UUID PRIMARY KEY,
    email               VARCHAR(255) NOT NULL UNIQUE,
    name                VARCHAR(255) NOT NULL DEFAULT '',
    password_hash       TEXT NOT NULL,
    plan                VARCHAR(32) NOT NULL DEFAULT 'free',
    stripe_customer_id  VARCHAR(255) NOT NULL DEFAULT '',
    subscription_status VARCHAR(32) NOT NULL DEFAULT '',
    custom_prompt       TEXT NOT NULL DEFAULT '',
    blocked_senders     TEXT[] NOT NULL DEFAULT '{}',
    emails_used         INTEGER NOT NULL DEFAULT 0,
    usage_period_start  TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
    created_at          TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_users_stripe_customer ON users(stripe_customer_id);

CREATE TABLE IF NOT EXISTS connected_accounts (
    id            UUID PRIMARY KEY,
    user_id       UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    provider      VARCHAR(16) NOT NULL,
    email_address VARCHAR(255) NOT NULL,
    access_token  TEXT NOT NULL DEFAULT '',
    refresh_token TEXT NOT NULL DEFAULT '',
    token_type    VARCHAR(32) NOT NULL DEFAULT '',
    token_expiry  TIMESTAMP WITH TIME ZONE,
    sync_paused   BOOLEAN NOT NULL DEFAULT false,
    created_at    TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
    UNIQUE (user_id, email_address, provider)
);

CREATE INDEX IF NOT EXISTS idx_connected_accounts_user ON connected_accounts(user_id);

-- Inbound messages are partitioned by account_id rather than one table per account.
CREATE TABLE IF NOT EXISTS inbound_messages (
    id                  UUID PRIMARY KEY,
    user_id             UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    account_id          UUID NOT NULL,
    provider_message_id VARCHAR(255) NOT NULL,
    thread_id           VARCHAR(255) NOT NULL DEFAULT '',
    subject             TEXT NOT NULL DEFAULT '',
    snippet             TEXT NOT NULL DEFAULT '',
    body_text           TEXT NOT NULL DEFAULT '',
    body_html           TEXT,
    from_name           TEXT NOT NULL DEFAULT '',
    from_email          TEXT NOT NULL DEFAULT '',
    to_addrs            TEXT[] NOT NULL DEFAULT '{}',
    received_at         TIMESTAMP WITH TIME ZONE NOT NULL,
    category            VARCHAR(16) NOT NULL,
    sentiment           VARCHAR(16) NOT NULL,
    is_urgent           BOOLEAN NOT NULL DEFAULT false,
    is_bulk             BOOLEAN NOT NULL DEFAULT false,
    processed           BOOLEAN NOT NULL DEFAULT false,
    processing_status   VARCHAR(16) NOT NULL DEFAULT 'pending',
    processing_log      JSONB NOT NULL DEFAULT '[]',
    created_at          TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now(),
    UNIQUE (account_id, provider_message_id)
);

CREATE INDEX IF NOT EXISTS idx_inbound_user_received ON inbound_messages(user_id, received_at DESC);

CREATE TABLE IF NOT EXISTS sent_replies (
    id                  UUID PRIMARY KEY,
    user_id             UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
    account_id          UUID NOT NULL,
    from_addr           TEXT NOT NULL,
    to_addrs            TEXT[] NOT NULL DEFAULT '{}',
    subject             TEXT NOT NULL DEFAULT '',
    body                TEXT NOT NULL DEFAULT '',
    thread_id           VARCHAR(255) NOT NULL DEFAULT '',
    provider_message_id VARCHAR(255) NOT NULL DEFAULT '',
    reply_to_message_id VARCHAR(255) NOT NULL DEFAULT '',
    response_time_ms    BIGINT NOT NULL DEFAULT 0,
    category            VARCHAR(16) NOT NULL,
    sentiment           VARCHAR(16) NOT NULL,
    auto_generated      BOOLEAN NOT NULL DEFAULT true,
    is_reply            BOOLEAN NOT NULL DEFAULT true,
    sent_at             TIMESTAMP WITH TIME ZONE NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sent_replies_user_sent ON sent_replies(user_id, sent_at DESC);
`
