package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/mitsuke/data/db/catalog.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/mitsuke/data/indices/products.vec"
	}
	if cfg.Storage.KeywordIndexPath == "" {
		cfg.Storage.KeywordIndexPath = "/usr/local/var/mitsuke/data/indices/bleve"
	}
	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "/usr/local/var/mitsuke/data/uploads"
	}
	if cfg.Catalog.CSVPath == "" {
		cfg.Catalog.CSVPath = "/usr/local/var/mitsuke/data/catalog/styles.csv"
	}
	if cfg.Catalog.ImagesPath == "" {
		cfg.Catalog.ImagesPath = "/usr/local/var/mitsuke/data/catalog/images"
	}
	if cfg.Encoder.Model == "" {
		cfg.Encoder.Model = "clip-vit-base-patch32"
	}
	if cfg.Encoder.Dimensions == 0 {
		cfg.Encoder.Dimensions = 512
	}
	if cfg.Encoder.CacheSize == 0 {
		cfg.Encoder.CacheSize = 10000
	}
	if cfg.Encoder.TimeoutSeconds == 0 {
		cfg.Encoder.TimeoutSeconds = 30
	}
	if cfg.Expander.Model == "" {
		cfg.Expander.Model = "gpt-4o-mini"
	}
	if cfg.Expander.TimeoutSeconds == 0 {
		cfg.Expander.TimeoutSeconds = 20
	}
	if cfg.Session.TTLMinutes == 0 {
		cfg.Session.TTLMinutes = 30
	}
	if cfg.Session.SweepMinutes == 0 {
		cfg.Session.SweepMinutes = 10
	}
	if cfg.Session.MaxHistory == 0 {
		cfg.Session.MaxHistory = 5
	}
	if cfg.Search.ImageTopK == 0 {
		cfg.Search.ImageTopK = 15
	}
	if cfg.Search.TextTopK == 0 {
		cfg.Search.TextTopK = 20
	}
	if cfg.Search.GroupItemCap == 0 {
		cfg.Search.GroupItemCap = 5
	}
	if cfg.Search.MaxSubQueries == 0 {
		cfg.Search.MaxSubQueries = 10
	}
	if cfg.Search.MinImageScore == 0 {
		cfg.Search.MinImageScore = 0.5
	}
	if cfg.Search.TextWeight == 0 {
		cfg.Search.TextWeight = 0.6
	}
	if cfg.Search.ImageWeight == 0 {
		cfg.Search.ImageWeight = 0.4
	}
}
