package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/query"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
	"github.com/asaidimu/go-jsonapi-params/sqlite"
)

const seedSQL = `
CREATE TABLE people (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	age INTEGER,
	gender TEXT
);
CREATE TABLE pets (
	id INTEGER PRIMARY KEY,
	person_id INTEGER NOT NULL REFERENCES people(id),
	name TEXT NOT NULL,
	toy_id INTEGER REFERENCES toys(id)
);
CREATE TABLE toys (
	id INTEGER PRIMARY KEY,
	type TEXT NOT NULL
);
INSERT INTO people (id, name, age, gender) VALUES
	(1, 'Ann', 12, 'm'),
	(2, 'Bea', 25, 'f'),
	(3, 'Carl', 70, 'm'),
	(4, 'Dana', 28, 'f'),
	(5, 'Eli', 3, 'm');
INSERT INTO toys (id, type) VALUES (1, 'ball'), (2, 'bone');
INSERT INTO pets (id, person_id, name, toy_id) VALUES
	(1, 1, 'Rex', 1),
	(2, 1, 'Spot', 2),
	(3, 2, 'Milo', 1);
`

func personModel() *schema.Model {
	toy := &schema.Model{Resource: "toy", Table: "toys", IDAttribute: "id", Naming: schema.SnakeCaseNaming{}}
	pet := &schema.Model{
		Resource:    "pet",
		Table:       "pets",
		IDAttribute: "id",
		Naming:      schema.SnakeCaseNaming{},
		Relations: map[string]*schema.Relation{
			"toy": {Kind: schema.BelongsTo, Model: toy, LocalColumn: "toy_id", RemoteColumn: "id"},
		},
	}
	return &schema.Model{
		Resource:    "person",
		Table:       "people",
		IDAttribute: "id",
		Naming:      schema.SnakeCaseNaming{},
		Relations: map[string]*schema.Relation{
			"pets": {Kind: schema.HasMany, Model: pet, LocalColumn: "id", RemoteColumn: "person_id"},
		},
	}
}

func main() {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(seedSQL); err != nil {
		log.Fatalf("failed to seed database: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Sync()

	fetcher, err := query.NewFetcher(&query.Config{Pagination: &params.Page{Limit: 10}}, logger)
	if err != nil {
		log.Fatalf("failed to create fetcher: %v", err)
	}
	fetcher.Subscribe(query.QuerySuccess, func(ctx context.Context, event query.QueryEvent) error {
		logger.Info("query finished",
			zap.String("queryId", event.QueryID),
			zap.String("resource", event.Resource))
		return nil
	})

	model := personModel()
	ctx := context.Background()

	// Average age per gender.
	result, err := fetcher.Fetch(ctx, sqlite.NewBuilder(db, model, logger), model, map[string]any{
		"fields": map[string]any{"person": []any{"avg(age)", "gender"}},
		"group":  []any{"gender"},
	}, nil)
	if err != nil {
		log.Fatalf("aggregate query failed: %v", err)
	}
	printResult("average age per gender", result)

	// Adults, youngest first, one page of two.
	result, err = fetcher.Fetch(ctx, sqlite.NewBuilder(db, model, logger), model, map[string]any{
		"filter": map[string]any{"gte": map[string]any{"age": "18"}},
		"sort":   []any{"age"},
		"page":   map[string]any{"limit": 2, "offset": 0},
	}, nil)
	if err != nil {
		log.Fatalf("paginated query failed: %v", err)
	}
	printResult("adults, first page", result)

	// One person with nested pets and toys.
	result, err = fetcher.Fetch(ctx, sqlite.NewBuilder(db, model, logger), model, map[string]any{
		"filter":  map[string]any{"id": "1"},
		"include": []any{"pets", "pets.toy"},
	}, nil)
	if err != nil {
		log.Fatalf("single query failed: %v", err)
	}
	printResult("person 1 with pets", result)
}

func printResult(label string, result *query.Result) {
	payload := any(result.Data)
	if result.Single != nil {
		payload = result.Single
	}
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode result: %v", err)
	}
	fmt.Printf("--- %s ---\n%s\n", label, encoded)
	if result.Pagination != nil {
		fmt.Printf("pageCount: %d\n", result.Pagination.PageCount)
	}
}
