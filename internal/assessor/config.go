package assessor

// Config holds runtime settings for the brand assessor.
type Config struct {
	// BrandsFile optionally points at a YAML file of extra brands.
	BrandsFile string `yaml:"brands_file"`

	// ExtraBrands are appended after the built-in registry.
	ExtraBrands []Brand `yaml:"extra_brands"`
}

func DefaultConfig() Config {
	return Config{}
}
