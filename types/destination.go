package types

type DestinationType string

const (
	Memory  DestinationType = "MEMORY"
	Parquet DestinationType = "PARQUET"
)

// WriterConfig pairs a destination type with its writer-specific config blob.
type WriterConfig struct {
	Type         DestinationType `json:"type" validate:"required"`
	WriterConfig any             `json:"writer"`
}
