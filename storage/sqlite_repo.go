package storage

import (
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"eveconsole/config"
	"eveconsole/eve"
	"eveconsole/queryparse"
)

// SQLiteEventRepoOptions configures the repository's aggregation
// behavior. These used to be ambient toggles; they are construction
// parameters now so tests and deployments can pin them per instance.
type SQLiteEventRepoOptions struct {
	Strategy   config.AlertStrategy
	TimeBudget time.Duration
	LogQueries bool
}

// SQLiteEventRepo implements EventRepo over the embedded SQLite store.
type SQLiteEventRepo struct {
	db      *SQLite
	sensors *SensorCache
	opts    SQLiteEventRepoOptions
	logger  *zap.SugaredLogger
}

// NewSQLiteEventRepo creates the relational repository variant. The
// sensor cache is shared state owned by the caller.
func NewSQLiteEventRepo(db *SQLite, sensors *SensorCache, opts SQLiteEventRepoOptions, logger *zap.SugaredLogger) *SQLiteEventRepo {
	if opts.Strategy == "" {
		opts.Strategy = config.StrategyGroupBy
	}
	if opts.TimeBudget <= 0 {
		opts.TimeBudget = 3 * time.Second
	}
	return &SQLiteEventRepo{
		db:      db,
		sensors: sensors,
		opts:    opts,
		logger:  logger,
	}
}

// GetImporter returns a fresh import sink over the write pool.
func (r *SQLiteEventRepo) GetImporter() EventImporter {
	return newSQLiteImporter(r.db, r.logger)
}

// Sensors returns the injected sensor cache.
func (r *SQLiteEventRepo) Sensors() *SensorCache {
	return r.sensors
}

func (r *SQLiteEventRepo) logQuery(sql string, args []interface{}) {
	if r.opts.LogQueries {
		r.logger.Infow("query", "sql", sql, "args", args)
	}
}

// extractColumn renders the query-time JSON extraction for a document
// path. Used where grouping semantics must not depend on the index
// layer, i.e. the GROUP BY dedup key.
func extractColumn(path string) string {
	return fmt.Sprintf("json_extract(events.source, '$.%s')", path)
}

// sqlFilter is one predicate fragment with its bound arguments.
type sqlFilter struct {
	fragment string
	args     []interface{}
}

// alertFilters assembles the pre-filter set shared by both aggregation
// strategies: alerts only, tag flags, sensor, minimum timestamp, and
// the parsed query string. jsonCol renders a document-path column for
// the calling strategy's projection mode.
func (r *SQLiteEventRepo) alertFilters(options AlertQueryOptions, jsonCol func(string) string) []sqlFilter {
	filters := []sqlFilter{
		{fragment: jsonCol("event_type") + " = ?", args: []interface{}{"alert"}},
	}

	for _, tag := range options.Tags {
		switch tag {
		case eve.TagArchived:
			filters = append(filters, sqlFilter{"archived = ?", []interface{}{1}})
		case eve.TagNotArchived:
			filters = append(filters, sqlFilter{"archived = ?", []interface{}{0}})
		case eve.TagEscalated:
			filters = append(filters, sqlFilter{"escalated = ?", []interface{}{1}})
		default:
			r.logger.Debugw("Ignoring unrecognized tag filter", "tag", tag)
		}
	}

	if options.Sensor != "" {
		filters = append(filters, sqlFilter{jsonCol("host") + " = ?", []interface{}{options.Sensor}})
	}

	if options.TimestampGte > 0 {
		filters = append(filters, sqlFilter{"timestamp >= ?", []interface{}{options.TimestampGte}})
	}

	if options.QueryString != "" {
		elements, err := queryparse.Parse(options.QueryString)
		if err != nil {
			// The free-text filter is advisory; a typo must not take
			// down the whole alert view.
			r.logger.Errorw("Failed to parse query string",
				"error", err, "query_string", options.QueryString)
		} else {
			filters = append(filters, r.elementFilters(elements, jsonCol)...)
		}
	}

	return filters
}

// elementFilters translates parsed query-string elements into SQL
// predicates. Elements that cannot be expressed here are logged and
// skipped.
func (r *SQLiteEventRepo) elementFilters(elements []queryparse.Element, jsonCol func(string) string) []sqlFilter {
	var filters []sqlFilter
	for _, el := range elements {
		switch el.Kind {
		case queryparse.KindString:
			if el.Negated {
				filters = append(filters,
					sqlFilter{"events.source NOT LIKE ?", []interface{}{"%" + el.Value + "%"}})
			} else {
				filters = append(filters,
					sqlFilter{"events.source LIKE ?", []interface{}{"%" + el.Value + "%"}})
			}
		case queryparse.KindKeyValue:
			if !validJSONPath(el.Key) {
				r.logger.Warnw("Skipping filter with invalid field path", "field", el.Key)
				continue
			}
			if n, err := strconv.ParseInt(el.Value, 10, 64); err == nil {
				filters = append(filters,
					sqlFilter{jsonCol(el.Key) + " = ?", []interface{}{n}})
			} else {
				filters = append(filters,
					sqlFilter{jsonCol(el.Key) + " LIKE ?", []interface{}{"%" + el.Value + "%"}})
			}
		case queryparse.KindFrom:
			r.logger.Warnw("Lower time bound not supported in alert query, skipping",
				"value", el.Value)
		case queryparse.KindTo:
			t, err := eve.ParseTimestamp(el.Value)
			if err != nil {
				r.logger.Warnw("Skipping unparseable upper time bound",
					"value", el.Value, "error", err)
				continue
			}
			filters = append(filters,
				sqlFilter{"timestamp <= ?", []interface{}{t.UnixNano()}})
		}
	}
	return filters
}
