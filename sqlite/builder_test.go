package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asaidimu/go-jsonapi-params/core/params"
	"github.com/asaidimu/go-jsonapi-params/core/query"
	"github.com/asaidimu/go-jsonapi-params/core/schema"
)

const testSeed = `
CREATE TABLE people (
	id       INTEGER PRIMARY KEY,
	name     TEXT NOT NULL,
	age      INTEGER NOT NULL,
	gender   TEXT NOT NULL,
	nickname TEXT
);
CREATE TABLE toys (
	id   INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE pets (
	id        INTEGER PRIMARY KEY,
	name      TEXT NOT NULL,
	person_id INTEGER NOT NULL REFERENCES people(id),
	toy_id    INTEGER REFERENCES toys(id)
);

INSERT INTO people (id, name, age, gender, nickname) VALUES
	(1, 'Ann',  12, 'm', NULL),
	(2, 'Bea',  25, 'f', 'Bee'),
	(3, 'Carl', 70, 'm', 'Smith, John'),
	(4, 'Dana', 28, 'f', NULL),
	(5, 'Eli',   3, 'm', 'El');

INSERT INTO toys (id, name) VALUES
	(1, 'Ball'),
	(2, 'Bone');

INSERT INTO pets (id, name, person_id, toy_id) VALUES
	(1, 'Rex',  1, 1),
	(2, 'Milo', 2, NULL),
	(3, 'Fifi', 4, 2);
`

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(testSeed)
	require.NoError(t, err)
	return db
}

func newPersonModel() *schema.Model {
	toy := &schema.Model{
		Resource:    "toy",
		Table:       "toys",
		IDAttribute: "id",
		Naming:      schema.SnakeCaseNaming{},
	}
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

// run compiles the raw parameters and executes them against a fresh builder.
func run(t *testing.T, db *sql.DB, raw map[string]any, opts *query.Options) (*query.Result, error) {
	t.Helper()
	fetcher, err := query.NewFetcher(nil, nil)
	require.NoError(t, err)
	model := newPersonModel()
	return fetcher.Fetch(context.Background(), NewBuilder(db, model, nil), model, raw, opts)
}

func names(t *testing.T, docs []schema.Document) []string {
	t.Helper()
	out := make([]string, 0, len(docs))
	for _, doc := range docs {
		name, ok := doc["name"].(string)
		require.True(t, ok, "row missing name: %v", doc)
		out = append(out, name)
	}
	return out
}

func TestFilterEq(t *testing.T) {
	db := openTestDB(t)

	t.Run("single value", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"name": "Ann"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann"}, names(t, result.Data))
	})

	t.Run("comma list is a union", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"name": "Ann,Bea"},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Bea"}, names(t, result.Data))
	})

	t.Run("value order does not matter", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"name": "Bea,Ann"},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Bea"}, names(t, result.Data))
	})

	t.Run("distinct fields intersect", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"gender": "m", "name": "Ann,Bea"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann"}, names(t, result.Data))
	})
}

func TestFilterNullSentinel(t *testing.T) {
	db := openTestDB(t)

	t.Run("lowercase null matches missing values", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"nickname": "null"},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Dana"}, names(t, result.Data))
	})

	t.Run("uppercase NULL is a literal string", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"nickname": "NULL"},
		}, nil)
		require.NoError(t, err)
		assert.Empty(t, result.Data)
	})

	t.Run("null mixes with ordinary values", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"nickname": "null,Bee"},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Bea", "Dana"}, names(t, result.Data))
	})
}

func TestFilterNot(t *testing.T) {
	db := openTestDB(t)

	t.Run("excludes null", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"not": map[string]any{"nickname": "null"}},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Bea", "Carl", "Eli"}, names(t, result.Data))
	})

	t.Run("comma list excludes every value", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"not": map[string]any{"name": "Ann,Bea"}},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Carl", "Dana", "Eli"}, names(t, result.Data))
	})
}

func TestFilterLike(t *testing.T) {
	db := openTestDB(t)

	t.Run("substring match", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"like": map[string]any{"name": "an"}},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Dana"}, names(t, result.Data))
	})

	t.Run("digit match against a numeric column", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"like": map[string]any{"age": "2"}},
			"sort":   []any{"name"},
		}, nil)
		require.NoError(t, err)
		// 12, 25 and 28 contain the digit.
		assert.Equal(t, []string{"Ann", "Bea", "Dana"}, names(t, result.Data))
	})
}

func TestFilterComparisons(t *testing.T) {
	db := openTestDB(t)

	cases := []struct {
		name      string
		op        string
		threshold string
		want      []string
	}{
		{"gte includes boundary", "gte", "25", []string{"Bea", "Carl", "Dana"}},
		{"gt excludes boundary", "gt", "25", []string{"Carl", "Dana"}},
		{"lt excludes boundary", "lt", "25", []string{"Ann", "Eli"}},
		{"lte includes boundary", "lte", "25", []string{"Ann", "Bea", "Eli"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := run(t, db, map[string]any{
				"filter": map[string]any{tc.op: map[string]any{"age": tc.threshold}},
				"sort":   []any{"name"},
			}, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(t, result.Data))
		})
	}
}

func TestComparisonRejectsValueList(t *testing.T) {
	db := openTestDB(t)

	_, err := run(t, db, map[string]any{
		"filter": map[string]any{"gt": map[string]any{"age": "1,2"}},
	}, nil)
	require.Error(t, err)
	var listErr *query.ComparisonListError
	require.True(t, errors.As(err, &listErr))
	assert.Equal(t, query.OperatorGt, listErr.Op)
}

func TestEscapedCommaIsLiteral(t *testing.T) {
	db := openTestDB(t)

	result, err := run(t, db, map[string]any{
		"filter": map[string]any{"nickname": `Smith\, John`},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Carl"}, names(t, result.Data))
}

func TestSort(t *testing.T) {
	db := openTestDB(t)

	t.Run("ascending", func(t *testing.T) {
		result, err := run(t, db, map[string]any{"sort": []any{"age"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Eli", "Ann", "Bea", "Dana", "Carl"}, names(t, result.Data))
	})

	t.Run("descending is the exact reversal", func(t *testing.T) {
		result, err := run(t, db, map[string]any{"sort": []any{"-age"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Carl", "Dana", "Bea", "Ann", "Eli"}, names(t, result.Data))
	})

	t.Run("nulls order first ascending", func(t *testing.T) {
		result, err := run(t, db, map[string]any{"sort": []any{"nickname", "id"}}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann", "Dana", "Bea", "Eli", "Carl"}, names(t, result.Data))
	})
}

func TestRelationPaths(t *testing.T) {
	db := openTestDB(t)

	t.Run("filter through a relation", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"pets.name": "Rex"},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Ann"}, names(t, result.Data))
	})

	t.Run("sort through a relation", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"sort": []any{"pets.name", "id"},
		}, nil)
		require.NoError(t, err)
		// Petless people join against NULL and order first.
		assert.Equal(t, []string{"Carl", "Eli", "Dana", "Bea", "Ann"}, names(t, result.Data))
	})
}

func TestAggregatesWithGrouping(t *testing.T) {
	db := openTestDB(t)

	result, err := run(t, db, map[string]any{
		"fields": map[string]any{"person": []any{"avg(age)", "gender"}},
		"group":  []any{"gender"},
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 2)

	averages := make(map[string]float64, 2)
	for _, row := range result.Data {
		gender, ok := row["gender"].(string)
		require.True(t, ok)
		avg, ok := row["avg"].(float64)
		require.True(t, ok)
		averages[gender] = avg
	}
	assert.InDelta(t, 26.5, averages["f"], 0.001)
	assert.InDelta(t, 28.333, averages["m"], 0.001)
}

func TestPagination(t *testing.T) {
	db := openTestDB(t)

	t.Run("page count spans all matches", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"page": map[string]any{"limit": 1, "offset": 0},
		}, nil)
		require.NoError(t, err)
		assert.Len(t, result.Data, 1)
		require.NotNil(t, result.Pagination)
		assert.Equal(t, 5, result.Pagination.PageCount)
	})

	t.Run("offset shifts the window", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"sort": []any{"name"},
			"page": map[string]any{"limit": 2, "offset": 2},
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Carl", "Dana"}, names(t, result.Data))
		require.NotNil(t, result.Pagination)
		assert.Equal(t, 3, result.Pagination.PageCount)
	})

	t.Run("page count under a relation filter", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"gte": map[string]any{"pets.id": "0"}},
			"page":   map[string]any{"limit": 10, "offset": 0},
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Pagination)
		assert.Equal(t, 1, result.Pagination.PageCount)
		assert.Len(t, result.Data, 3)
	})
}

func TestIncludes(t *testing.T) {
	db := openTestDB(t)

	t.Run("has-many attaches a list", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter":  map[string]any{"name": "Ann,Carl"},
			"include": []any{"pets"},
			"sort":    []any{"name"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 2)

		annPets, ok := result.Data[0]["pets"].([]schema.Document)
		require.True(t, ok)
		require.Len(t, annPets, 1)
		assert.Equal(t, "Rex", annPets[0]["name"])

		carlPets, ok := result.Data[1]["pets"].([]schema.Document)
		require.True(t, ok)
		assert.Empty(t, carlPets)
	})

	t.Run("nested belongs-to attaches a document or nil", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter":  map[string]any{"name": "Ann,Bea"},
			"include": []any{"pets.toy"},
			"sort":    []any{"name"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 2)

		annPets := result.Data[0]["pets"].([]schema.Document)
		require.Len(t, annPets, 1)
		toy, ok := annPets[0]["toy"].(schema.Document)
		require.True(t, ok)
		assert.Equal(t, "Ball", toy["name"])

		beaPets := result.Data[1]["pets"].([]schema.Document)
		require.Len(t, beaPets, 1)
		assert.Nil(t, beaPets[0]["toy"])
	})

	t.Run("refined include narrows the loaded set", func(t *testing.T) {
		onlyRex := func(b query.Builder) error {
			return b.Where(query.FilterClause{
				Op:     query.OperatorEq,
				Path:   params.FieldPath{Attribute: "name"},
				Values: []any{"Rex"},
			})
		}
		result, err := run(t, db, map[string]any{
			"filter":  map[string]any{"name": "Ann,Bea"},
			"include": []any{map[string]any{"pets": onlyRex}},
			"sort":    []any{"name"},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 2)

		annPets := result.Data[0]["pets"].([]schema.Document)
		require.Len(t, annPets, 1)
		assert.Equal(t, "Rex", annPets[0]["name"])

		beaPets := result.Data[1]["pets"].([]schema.Document)
		assert.Empty(t, beaPets)
	})

	t.Run("per-type projection keeps stitching keys", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter":  map[string]any{"name": "Ann"},
			"include": []any{"pets"},
			"fields":  map[string]any{"pet": []any{"name"}},
		}, nil)
		require.NoError(t, err)
		require.Len(t, result.Data, 1)

		pets := result.Data[0]["pets"].([]schema.Document)
		require.Len(t, pets, 1)
		assert.Equal(t, "Rex", pets[0]["name"])
		assert.Contains(t, pets[0], "person_id")
		assert.NotContains(t, pets[0], "toy_id")
	})
}

func TestRootProjection(t *testing.T) {
	db := openTestDB(t)

	result, err := run(t, db, map[string]any{
		"filter": map[string]any{"name": "Ann"},
		"fields": map[string]any{"person": []any{"name", "age"}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, result.Data, 1)
	assert.Equal(t, "Ann", result.Data[0]["name"])
	assert.Equal(t, int64(12), result.Data[0]["age"])
	assert.NotContains(t, result.Data[0], "gender")
}

func TestSingleRecordMode(t *testing.T) {
	db := openTestDB(t)

	t.Run("id filter yields one document", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"id": "1"},
		}, nil)
		require.NoError(t, err)
		require.NotNil(t, result.Single)
		assert.Equal(t, "Ann", result.Single["name"])
		assert.Nil(t, result.Data)
	})

	t.Run("missing record is not an error", func(t *testing.T) {
		result, err := run(t, db, map[string]any{
			"filter": map[string]any{"id": "404"},
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, result.Single)
	})
}

func TestUnknownColumnSurfacesStoreError(t *testing.T) {
	db := openTestDB(t)

	_, err := run(t, db, map[string]any{
		"filter": map[string]any{"shoeSize": "9"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such column")
}

func TestUnknownRelationFails(t *testing.T) {
	db := openTestDB(t)

	_, err := run(t, db, map[string]any{
		"filter": map[string]any{"enemies.name": "Rex"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown relation")
}
