//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"ski_homes/internal/adapters/csvsource"
	server "ski_homes/internal/adapters/http_server"
	"ski_homes/internal/adapters/kindred"
	"ski_homes/internal/adapters/routing"
	"ski_homes/internal/app"
	"ski_homes/internal/domain"
	mysqlrepo "ski_homes/internal/storage/mysql"
)

const resortsCSV = `Resort,ResortRegion,StateOrProvince,Latitude,Longitude,SkiableAcres,VerticalDrop,AnnualSnowfall
Killington,Northeast,Vermont,43.6045,-72.8201,1509,3050,250
Stowe,Northeast,Vermont,44.5303,-72.7814,485,2360,314
Vail,Rocky Mountains,Colorado,39.6061,-106.3550,5317,3450,354
`

// ---------- helpers ----------
func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func loadResorts(t *testing.T) []domain.Resort {
	t.Helper()
	rs, err := csvsource.Parse(context.Background(), strings.NewReader(resortsCSV))
	if err != nil {
		t.Fatalf("parse resorts: %v", err)
	}
	return rs
}

// nearest resolves a point back to the resort it was derived from.
func nearest(rs []domain.Resort, lat, lon float64) string {
	best, bestD := "", math.MaxFloat64
	for _, r := range rs {
		if d := math.Hypot(r.Coords.Lat-lat, r.Coords.Lon-lon); d < bestD {
			best, bestD = r.Name, d
		}
	}
	return best
}

// ---------- fake upstreams ----------

type kindredFake struct {
	resorts   []domain.Resort
	refreshes atomic.Int32
	searches  atomic.Int32
}

const homeJSON = `{"home":{"id":"%s","title":"%s","lat":%f,"lon":%f,"maxGuestsLimit":6,"bathrooms":2,"bedroomsCount":3,
	"petPreference":"YES","media":[{"url":"https://img.example/%s.jpg","thumbnailUrl":"t"}],
	"availabilitiesWithoutBookedDates":[{"startDate":"2026-01-10","endDate":"2026-01-25"}]}}`

func (k *kindredFake) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var in struct {
		OperationName string `json:"operationName"`
		Variables     struct {
			RefreshToken string `json:"refreshToken"`
			Filter       struct {
				Polygon []domain.Coords `json:"polygon"`
			} `json:"filter"`
		} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	switch in.OperationName {
	case "refreshUserToken":
		k.refreshes.Add(1)
		if in.Variables.RefreshToken != "refresh-1" {
			_, _ = w.Write([]byte(`{"errors":[{"message":"refresh token expired"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"refreshUserToken":{"accessToken":"fresh","refreshToken":"refresh-2"}}}`))
	case "exploreList":
		k.searches.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var lat, lon float64
		for _, p := range in.Variables.Filter.Polygon {
			lat += p.Lat
			lon += p.Lon
		}
		n := float64(len(in.Variables.Filter.Polygon))
		var recs []string
		switch nearest(k.resorts, lat/n, lon/n) {
		case "Killington":
			recs = []string{fmt.Sprintf(homeJSON, "shared", "Between Both", 44.05, -72.80, "shared")}
		case "Stowe":
			recs = []string{
				fmt.Sprintf(homeJSON, "shared", "Between Both", 44.05, -72.80, "shared"),
				fmt.Sprintf(homeJSON, "stowe-only", "Mountain Road", 44.50, -72.75, "stowe-only"),
			}
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprintf(w, `{"data":{"getHomesWithSearchCriteria":{"hasMore":false,"homeRecs":[%s]}}}`, strings.Join(recs, ","))
	default:
		http.Error(w, "unexpected operation", http.StatusBadRequest)
	}
}

func orsFake(t *testing.T, rs []domain.Resort, minutes map[string]float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("api_key") != "ors-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		var in struct {
			Coordinates [][2]float64 `json:"coordinates"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || len(in.Coordinates) != 2 {
			t.Errorf("bad directions body: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		to := in.Coordinates[1] // [lon, lat]
		m, ok := minutes[nearest(rs, to[1], to[0])]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprintf(w, `{"routes":[{"summary":{"duration":%f,"distance":1000}}]}`, m*60)
	}
}

// ---------- the tests ----------

func TestHTTP_EndToEnd_Search(t *testing.T) {
	resorts := loadResorts(t)
	catalog, err := app.NewCatalog(resorts)
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	kf := &kindredFake{resorts: resorts}
	kts := httptest.NewServer(kf)
	defer kts.Close()
	ots := httptest.NewServer(orsFake(t, resorts, map[string]float64{"Killington": 20, "Stowe": 45}))
	defer ots.Close()

	market, err := kindred.New(kts.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("kindred: %v", err)
	}
	geo, err := routing.New(ots.URL, "ors-key", 100, 2*time.Second)
	if err != nil {
		t.Fatalf("routing: %v", err)
	}
	tokens := app.NewTokenManager(market)
	auth := app.NewAuthService(market, tokens, nil, 0)
	search := app.NewSearchService(catalog, market, geo, app.SearchConfig{Workers: 2, GeoWorkers: 2})

	srv := server.New(server.Options{AllowedOrigins: []string{"http://localhost:3000"}, RequestTimeout: 10 * time.Second})
	srv.MountHandlers(&server.Handlers{Auth: auth, Search: search, Catalog: catalog})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	body := `{"startDate":"2026-01-17","endDate":"2026-01-19","regions":["Northeast"],"resorts":["Vail"],"dateType":"flexible","minNights":1}`
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/search", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer stale")
	req.Header.Set("X-Refresh-Token", "refresh-1")

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	if got := res.Header.Get("X-Access-Token"); got != "fresh" {
		t.Fatalf("refreshed token not echoed, got %q", got)
	}

	var out struct {
		SearchID string `json:"searchId"`
		Results  []struct {
			ID        string   `json:"id"`
			Resort    string   `json:"resort"`
			Distance  string   `json:"distance"`
			DriveTime *float64 `json:"driveTime"`
			Resorts   []struct {
				Resort             string   `json:"resort"`
				DrivingTimeMinutes *float64 `json:"drivingTimeMinutes"`
			} `json:"resorts"`
			HomeURL string `json:"homeUrl"`
		} `json:"results"`
		Skipped []struct {
			Resort string `json:"resort"`
			Reason string `json:"reason"`
		} `json:"skipped"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if out.SearchID == "" || len(out.Results) != 2 {
		t.Fatalf("unexpected body: %+v", out)
	}
	shared := out.Results[0]
	if shared.ID != "shared" || shared.Resort != "Killington" || shared.Distance != "20.0 min" {
		t.Fatalf("shared listing: %+v", shared)
	}
	if len(shared.Resorts) != 2 || shared.Resorts[1].Resort != "Stowe" || *shared.Resorts[1].DrivingTimeMinutes != 45 {
		t.Fatalf("shared listing should list both resorts: %+v", shared.Resorts)
	}
	if out.Results[1].ID != "stowe-only" || out.Results[1].HomeURL == "" {
		t.Fatalf("second listing: %+v", out.Results[1])
	}
	if len(out.Skipped) != 1 || out.Skipped[0].Resort != "Vail" {
		t.Fatalf("Vail should be skipped: %+v", out.Skipped)
	}
	if n := kf.refreshes.Load(); n != 1 {
		t.Fatalf("refresh calls = %d, want 1", n)
	}
}

func TestHTTP_EndToEnd_SearchWithoutSession(t *testing.T) {
	resorts := loadResorts(t)
	catalog, _ := app.NewCatalog(resorts)
	kf := &kindredFake{resorts: resorts}
	kts := httptest.NewServer(kf)
	defer kts.Close()

	market, err := kindred.New(kts.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("kindred: %v", err)
	}
	auth := app.NewAuthService(market, app.NewTokenManager(market), nil, 0)
	search := app.NewSearchService(catalog, market, nil, app.SearchConfig{})
	srv := server.New(server.Options{RequestTimeout: 10 * time.Second})
	srv.MountHandlers(&server.Handlers{Auth: auth, Search: search, Catalog: catalog})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	// rejected bearer with no refresh token aborts the whole search
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/search", strings.NewReader(`{"startDate":"2026-01-17","endDate":"2026-01-19"}`))
	req.Header.Set("Authorization", "Bearer stale")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d, want 401", res.StatusCode)
	}
	if kf.refreshes.Load() != 0 {
		t.Fatalf("no refresh token was supplied")
	}
}

func TestHTTP_EndToEnd_MySQLCatalog(t *testing.T) {
	// Start isolated MySQL container
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}
	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=skihomes",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "skihomes")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)

	ctx := context.Background()
	var repo domain.ResortRepository = mysqlrepo.New(db)
	if err := repo.UpsertResorts(ctx, loadResorts(t)); err != nil {
		t.Fatalf("UpsertResorts: %v", err)
	}
	catalog, err := app.LoadCatalog(ctx, repo)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}

	srv := server.New(server.Options{RequestTimeout: 10 * time.Second})
	srv.MountHandlers(&server.Handlers{Catalog: catalog})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/resorts/stats")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d", res.StatusCode)
	}
	var body struct {
		Resorts []struct {
			Resort       string   `json:"resort"`
			SkiableAcres *float64 `json:"skiable_acres"`
		} `json:"resorts"`
		Regions []string `json:"regions"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Resorts) != 3 || body.Resorts[0].Resort != "Killington" || body.Resorts[2].Resort != "Vail" {
		t.Fatalf("catalog order lost: %+v", body.Resorts)
	}
	if body.Resorts[2].SkiableAcres == nil || *body.Resorts[2].SkiableAcres != 5317 {
		t.Fatalf("stats lost: %+v", body.Resorts[2])
	}
	if strings.Join(body.Regions, ",") != "Northeast,Rocky Mountains" {
		t.Fatalf("regions = %v", body.Regions)
	}
}
