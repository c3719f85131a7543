package config

type Kafka struct {
	Addresses []string `env:"KAFKA_ADDRESSES" envSeparator:","`
	Group     string   `env:"KAFKA_GROUP" envDefault:"stock-ledger"`
}

// Enabled reports whether a broker was configured. Without one the ledger
// still writes outbox rows, they are simply not relayed.
func (k Kafka) Enabled() bool {
	return len(k.Addresses) > 0
}
