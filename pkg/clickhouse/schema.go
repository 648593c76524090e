package clickhouse

import "fmt"

// BarTableDDL creates the daily bar table. Re-imported dates replace older rows on merge.
func BarTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    date    Date,
    ticker  LowCardinality(String),
    open    Float64,
    high    Float64,
    low     Float64,
    close   Float64,
    volume  Float64,
    ingested_at DateTime DEFAULT now()
) ENGINE = ReplacingMergeTree(ingested_at)
PARTITION BY toYear(date)
ORDER BY (ticker, date)`, table)
}

// ResultTableDDL creates the scan result table with a 180 day retention.
func ResultTableDDL(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    ts             DateTime64(3),
    ticker         LowCardinality(String),
    as_of          Date,
    status         LowCardinality(String),
    confidence     LowCardinality(String),
    final_score    Float64,
    weighted_score Float64,
    ml_probability Nullable(Float64),
    payload        String
) ENGINE = MergeTree
PARTITION BY toYYYYMM(ts)
ORDER BY (ticker, ts)
TTL toDateTime(ts) + INTERVAL 180 DAY`, table)
}
