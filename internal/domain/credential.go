package domain

// CredentialRecord is one named bundle of configuration values read from the
// config store. The store owns the lifecycle; the application only reads.
// Which fields are populated depends on the key: the credentials record
// carries the database and provider fields, the query record carries SQLQuery.
type CredentialRecord struct {
	Key             string
	DBHost          string
	DBPort          string
	DBName          string
	DBUser          string
	DBPassword      string
	PageAccessToken string
	SQLQuery        string
	MessageText     string
}

// DatabaseURL assembles a Postgres connection string from the record's
// credential fields.
func (r *CredentialRecord) DatabaseURL() string {
	return "postgres://" + r.DBUser + ":" + r.DBPassword +
		"@" + r.DBHost + ":" + r.DBPort + "/" + r.DBName
}
