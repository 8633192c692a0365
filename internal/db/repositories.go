package db

// Repositories provides access to all database repositories
type Repositories struct {
	Channels *ChannelRepository
	Settings *SettingsRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(db *DB, defaultStreamServer string) *Repositories {
	return &Repositories{
		Channels: NewChannelRepository(db),
		Settings: NewSettingsRepository(db, defaultStreamServer),
	}
}
