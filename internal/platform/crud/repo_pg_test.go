package crud

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/scrypto/portal/pkg/pagination"
)

type sampleRow struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Allergen  string    `json:"allergen" db:"allergen"`
	Severity  *string   `json:"severity" db:"severity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Internal  string    `json:"-" db:"-"`
}

type sampleInput struct {
	Allergen    string          `json:"allergen"`
	Severity    *string         `json:"severity"`
	Reaction    *string         `json:"reaction"`
	Permissions map[string]bool `json:"permissions"`
	Skip        string          `json:"skip" db:"-"`
}

func TestColumns(t *testing.T) {
	got := Columns[sampleRow]()
	want := []string{"id", "allergen", "severity", "created_at"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v, want %v", got, want)
	}
}

func TestValuesOf(t *testing.T) {
	sev := "mild"
	v := ValuesOf(&sampleInput{Allergen: "Dust", Severity: &sev, Skip: "x"})
	if v["allergen"] != "Dust" || v["severity"] != "mild" {
		t.Errorf("unexpected values %v", v)
	}
	for _, k := range []string{"reaction", "permissions", "skip"} {
		if _, ok := v[k]; ok {
			t.Errorf("expected %s to be omitted", k)
		}
	}
}

func TestBuildListSQL(t *testing.T) {
	uid := uuid.New()
	q := ListQuery{
		Params:  pagination.Params{Page: 2, PageSize: 10},
		Search:  "50%_nut",
		Filters: []FilterValue{{Filter: testTable.Filters[0], Value: "severe"}, {Filter: testTable.Filters[1], Value: "2024-01-01"}},
		Sort:    []Sort{{Column: "allergen"}},
	}
	countSQL, listSQL, args := buildListSQL(testTable, []string{"id", "allergen"}, uid, q)

	wantWhere := "user_id = $1 AND is_active AND (allergen::text ILIKE $2 OR reaction::text ILIKE $2) AND severity = $3 AND first_observed >= $4"
	if !strings.Contains(countSQL, "FROM v_patient__medhist__allergies WHERE "+wantWhere) {
		t.Errorf("unexpected count SQL: %s", countSQL)
	}
	if !strings.HasSuffix(listSQL, "ORDER BY allergen ASC NULLS LAST, id LIMIT 10 OFFSET 10") {
		t.Errorf("unexpected list SQL: %s", listSQL)
	}
	if len(args) != 4 || args[1] != `%50\%\_nut%` {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildInsertSQL(t *testing.T) {
	uid := uuid.New()
	sql, args := buildInsertSQL(testTable, uid, Values{"severity": "mild", "allergen": "Dust"})
	want := "INSERT INTO patient__medhist__allergies (user_id, allergen, severity) VALUES ($1, $2, $3) RETURNING id"
	if sql != want {
		t.Errorf("got %s\nwant %s", sql, want)
	}
	if args[0] != uid || args[1] != "Dust" || args[2] != "mild" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildUpdateSQL(t *testing.T) {
	uid, id := uuid.New(), uuid.New()
	sql, args := buildUpdateSQL(testTable, uid, id, Values{"allergen": "Pollen"})
	want := "UPDATE patient__medhist__allergies SET allergen = $3, updated_at = NOW() WHERE id = $1 AND user_id = $2 AND is_active"
	if sql != want {
		t.Errorf("got %s\nwant %s", sql, want)
	}
	if len(args) != 3 || args[0] != id || args[1] != uid {
		t.Errorf("unexpected args %v", args)
	}
}

func TestTableDefaults(t *testing.T) {
	tbl := Table{Name: "patient__carenet__caregivers"}
	if tbl.view() != "v_patient__carenet__caregivers" || tbl.Key() != "id" {
		t.Errorf("unexpected defaults %s %s", tbl.view(), tbl.Key())
	}
}

func TestBuildUpsertSQL(t *testing.T) {
	table := Table{Name: "patient__persinfo__medical_aid", IDColumn: "medical_aid_id", SoftDelete: true}
	userID := uuid.New()
	sql, args := buildUpsertSQL(table, userID, Values{"member_number": "123", "medical_aid_name": "Discovery"})

	want := `INSERT INTO patient__persinfo__medical_aid (user_id, medical_aid_name, member_number) VALUES ($1, $2, $3)` +
		` ON CONFLICT (user_id) WHERE is_active DO UPDATE SET medical_aid_name = EXCLUDED.medical_aid_name, member_number = EXCLUDED.member_number, updated_at = NOW(), is_active = true`
	if sql != want {
		t.Errorf("sql =\n%s\nwant\n%s", sql, want)
	}
	if len(args) != 3 || args[0] != userID || args[1] != "Discovery" {
		t.Errorf("unexpected args %v", args)
	}
}

func TestBuildUpsertSQL_ConflictTargetMatchesIndex(t *testing.T) {
	tests := []struct {
		name   string
		table  Table
		target string
	}{
		{"partial index on soft-delete table", Table{Name: "patient__persinfo__profile", SoftDelete: true}, " ON CONFLICT (user_id) WHERE is_active DO UPDATE SET "},
		{"plain unique column", Table{Name: "patient__persinfo__address"}, " ON CONFLICT (user_id) DO UPDATE SET "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, _ := buildUpsertSQL(tt.table, uuid.New(), Values{"first_name": "Thandi"})
			if !strings.Contains(sql, tt.target) {
				t.Errorf("sql %q missing conflict target %q", sql, tt.target)
			}
			if tt.table.SoftDelete != strings.Contains(sql, "is_active = true") {
				t.Errorf("is_active reset mismatch in %q", sql)
			}
		})
	}
}
