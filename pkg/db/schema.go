package db

// Note: In production, schema changes should be handled by migration
// tools. These statements are idempotent so the one-shot script and dev
// environments can run them freely.

// CreateKeyspace creates the skillswap keyspace. The session must be
// connected to the system keyspace.
func CreateKeyspace(s *Session) error {
	return s.Query(`CREATE KEYSPACE IF NOT EXISTS ` + Keyspace +
		` WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`).Exec()
}

// CreateSchema creates every table the conversation store uses. The
// session must already be connected to the skillswap keyspace.
func CreateSchema(s *Session) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id text,
			name text,
			email text,
			PRIMARY KEY (user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			conversation_id text,
			provider_id text,
			seeker_id text,
			created_at timestamp,
			updated_at timestamp,
			PRIMARY KEY (conversation_id)
		)`,
		// One row per message, clustered by snowflake id. Appending is a
		// plain INSERT, so concurrent senders never overwrite each other.
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			conversation_id text,
			message_id bigint,
			sender_id text,
			content text,
			sent_at timestamp,
			PRIMARY KEY (conversation_id, message_id)
		) WITH CLUSTERING ORDER BY (message_id ASC)`,
		// Natural key on the unordered participant pair. The LWT insert on
		// this table is both the duplicate-pair guard and the accept-deal
		// idempotency anchor.
		`CREATE TABLE IF NOT EXISTS conversation_pairs (
			pair_key text,
			conversation_id text,
			PRIMARY KEY (pair_key)
		)`,
		`CREATE TABLE IF NOT EXISTS user_conversations (
			user_id text,
			conversation_id text,
			last_updated timestamp,
			PRIMARY KEY (user_id, conversation_id)
		)`,
		`CREATE TABLE IF NOT EXISTS deals (
			deal_id text,
			provider_id text,
			seeker_id text,
			time_frame text,
			skill_offered text,
			number_of_sessions int,
			availabilities list<text>,
			status text,
			proposal text,
			created_at timestamp,
			PRIMARY KEY (deal_id)
		)`,
		`CREATE TABLE IF NOT EXISTS user_deals (
			user_id text,
			deal_id text,
			PRIMARY KEY (user_id, deal_id)
		)`,
	}

	for _, stmt := range stmts {
		if err := s.Query(stmt).Exec(); err != nil {
			return err
		}
	}
	return nil
}
