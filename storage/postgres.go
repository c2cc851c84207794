package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"homely-scraper/models"
)

// ErrAgentIncomplete is returned when an agent contact lacks the name or
// phone that forms its identity; such records never reach the database.
var ErrAgentIncomplete = errors.New("postgres: agent requires name and phone")

// upsertRetries bounds the read-modify-write retry when two workers race
// on the same unique key; the store's uniqueness constraint is the
// arbiter.
const upsertRetries = 3

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// Store persists agents and listings to PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use Store.
func NewStore(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS agents (
			id            SERIAL PRIMARY KEY,
			name          VARCHAR(255) NOT NULL,
			agency        VARCHAR(255) NOT NULL DEFAULT '',
			phone         VARCHAR(50)  NOT NULL,
			email         VARCHAR(100) NOT NULL DEFAULT '',
			profile_url   VARCHAR(255) NOT NULL DEFAULT '',
			bio           TEXT         NOT NULL DEFAULT '',
			profile_image VARCHAR(255) NOT NULL DEFAULT '',
			social_media  JSONB        NOT NULL DEFAULT '{}',
			created_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			UNIQUE (name, phone)
		);

		CREATE TABLE IF NOT EXISTS listings (
			id             SERIAL PRIMARY KEY,
			url            VARCHAR(255) UNIQUE NOT NULL,
			external_id    VARCHAR(50)  UNIQUE NOT NULL,
			title          VARCHAR(255) NOT NULL DEFAULT '',
			address        VARCHAR(255) NOT NULL DEFAULT '',
			suburb         VARCHAR(255) NOT NULL DEFAULT '',
			state          VARCHAR(50)  NOT NULL DEFAULT '',
			postcode       VARCHAR(10)  NOT NULL DEFAULT '',
			price_text     VARCHAR(50)  NOT NULL DEFAULT '',
			lower_price    INTEGER,
			upper_price    INTEGER,
			property_type  VARCHAR(50)  NOT NULL DEFAULT '',
			bedrooms       INTEGER,
			bathrooms      INTEGER,
			car_spaces     INTEGER,
			land_area      INTEGER,
			description    TEXT         NOT NULL DEFAULT '',
			council_rates  VARCHAR(50)  NOT NULL DEFAULT '',
			images             JSONB NOT NULL DEFAULT '[]',
			origin_images      JSONB NOT NULL DEFAULT '[]',
			floor_plan         JSONB NOT NULL DEFAULT '[]',
			origin_floor_plan  JSONB NOT NULL DEFAULT '[]',
			pdf_document       JSONB NOT NULL DEFAULT '[]',
			origin_pdf_document JSONB NOT NULL DEFAULT '[]',
			latitude       NUMERIC(11,7),
			longitude      NUMERIC(11,7),
			agent_id       INTEGER REFERENCES agents(id),
			publish_date   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_listings_suburb   ON listings(suburb);
		CREATE INDEX IF NOT EXISTS idx_listings_postcode ON listings(postcode);
		CREATE INDEX IF NOT EXISTS idx_listings_agent    ON listings(agent_id);
	`)
	return err
}

// ResolveAgent finds or creates the agent identified by (name, phone)
// and returns its durable id. Existing agents are merged with the
// non-empty-wins rule. Races on the unique key fall back to a bounded
// re-read.
func (s *Store) ResolveAgent(ctx context.Context, contact models.AgentContact) (int64, error) {
	if contact.Name == "" || contact.Phone == "" {
		return 0, ErrAgentIncomplete
	}

	var lastErr error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		id, err := s.resolveAgentOnce(ctx, contact)
		if err == nil {
			return id, nil
		}
		if !isUniqueViolation(err) {
			return 0, err
		}
		lastErr = err
	}
	return 0, fmt.Errorf("postgres: agent upsert retries exhausted: %w", lastErr)
}

func (s *Store) resolveAgentOnce(ctx context.Context, contact models.AgentContact) (int64, error) {
	existing, err := s.findAgent(ctx, contact.Name, contact.Phone)
	if err != nil {
		return 0, err
	}

	if existing == nil {
		var id int64
		err := s.db.QueryRowContext(ctx, `
			INSERT INTO agents (name, phone, agency, email, profile_url)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, contact.Name, contact.Phone, contact.Agency, contact.Email, contact.ProfileURL).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("postgres: insert agent: %w", err)
		}
		return id, nil
	}

	merged := MergeAgent(existing, contact)
	_, err = s.db.ExecContext(ctx, `
		UPDATE agents
		SET agency = $1, email = $2, profile_url = $3, updated_at = NOW()
		WHERE id = $4
	`, merged.Agency, merged.Email, merged.ProfileURL, existing.ID)
	if err != nil {
		return 0, fmt.Errorf("postgres: update agent: %w", err)
	}
	return existing.ID, nil
}

func (s *Store) findAgent(ctx context.Context, name, phone string) (*models.Agent, error) {
	a := &models.Agent{Name: name, Phone: phone}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, agency, email, profile_url
		FROM agents
		WHERE name = $1 AND phone = $2
	`, name, phone).Scan(&a.ID, &a.Agency, &a.Email, &a.ProfileURL)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find agent: %w", err)
	}
	return a, nil
}

// UpsertListing inserts a new listing or merges into the stored one,
// reassigning the agent reference either way. Each call commits on its
// own so one item's failure never rolls back another's.
func (s *Store) UpsertListing(ctx context.Context, listing *models.Listing) error {
	var lastErr error
	for attempt := 0; attempt < upsertRetries; attempt++ {
		err := s.upsertListingOnce(ctx, listing)
		if err == nil {
			return nil
		}
		if !isUniqueViolation(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("postgres: listing upsert retries exhausted: %w", lastErr)
}

func (s *Store) upsertListingOnce(ctx context.Context, listing *models.Listing) error {
	existing, err := s.findListing(ctx, listing.ExternalID)
	if err != nil {
		return err
	}

	if existing == nil {
		return s.insertListing(ctx, listing)
	}
	return s.updateListing(ctx, MergeListing(existing, listing))
}

func (s *Store) insertListing(ctx context.Context, l *models.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (
			url, external_id, title, address, suburb, state, postcode,
			price_text, lower_price, upper_price, property_type,
			bedrooms, bathrooms, car_spaces, land_area,
			description, council_rates,
			images, origin_images, floor_plan, origin_floor_plan,
			pdf_document, origin_pdf_document,
			latitude, longitude, agent_id, publish_date
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27
		)
	`,
		l.URL, l.ExternalID, l.Title, l.Address, l.Suburb, l.State, l.Postcode,
		l.PriceText, l.LowerPrice, l.UpperPrice, l.PropertyType,
		l.Bedrooms, l.Bathrooms, l.CarSpaces, l.LandArea,
		l.Description, l.CouncilRates,
		jsonList(l.Images), jsonList(l.OriginImages),
		jsonList(l.FloorPlan), jsonList(l.OriginFloorPlan),
		jsonList(l.PDFDocuments), jsonList(l.OriginDocuments),
		l.Latitude, l.Longitude, l.AgentID, l.PublishDate,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert listing %s: %w", l.ExternalID, err)
	}
	return nil
}

func (s *Store) updateListing(ctx context.Context, l *models.Listing) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE listings SET
			url = $1, title = $2, address = $3, suburb = $4, state = $5,
			postcode = $6, price_text = $7, lower_price = $8, upper_price = $9,
			property_type = $10, bedrooms = $11, bathrooms = $12,
			car_spaces = $13, land_area = $14, description = $15,
			council_rates = $16,
			images = $17, origin_images = $18, floor_plan = $19,
			origin_floor_plan = $20, pdf_document = $21, origin_pdf_document = $22,
			latitude = $23, longitude = $24, agent_id = $25,
			publish_date = $26, updated_at = NOW()
		WHERE external_id = $27
	`,
		l.URL, l.Title, l.Address, l.Suburb, l.State,
		l.Postcode, l.PriceText, l.LowerPrice, l.UpperPrice,
		l.PropertyType, l.Bedrooms, l.Bathrooms,
		l.CarSpaces, l.LandArea, l.Description,
		l.CouncilRates,
		jsonList(l.Images), jsonList(l.OriginImages), jsonList(l.FloorPlan),
		jsonList(l.OriginFloorPlan), jsonList(l.PDFDocuments), jsonList(l.OriginDocuments),
		l.Latitude, l.Longitude, l.AgentID,
		l.PublishDate, l.ExternalID,
	)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.ExternalID, err)
	}
	return nil
}

func (s *Store) findListing(ctx context.Context, externalID string) (*models.Listing, error) {
	l := &models.Listing{}
	var images, originImages, floorPlan, originFloorPlan, pdfDocs, originDocs []byte

	err := s.db.QueryRowContext(ctx, `
		SELECT id, url, external_id, title, address, suburb, state, postcode,
			price_text, lower_price, upper_price, property_type,
			bedrooms, bathrooms, car_spaces, land_area,
			description, council_rates,
			images, origin_images, floor_plan, origin_floor_plan,
			pdf_document, origin_pdf_document,
			latitude, longitude, agent_id, publish_date, created_at, updated_at
		FROM listings
		WHERE external_id = $1
	`, externalID).Scan(
		&l.ID, &l.URL, &l.ExternalID, &l.Title, &l.Address, &l.Suburb, &l.State, &l.Postcode,
		&l.PriceText, &l.LowerPrice, &l.UpperPrice, &l.PropertyType,
		&l.Bedrooms, &l.Bathrooms, &l.CarSpaces, &l.LandArea,
		&l.Description, &l.CouncilRates,
		&images, &originImages, &floorPlan, &originFloorPlan,
		&pdfDocs, &originDocs,
		&l.Latitude, &l.Longitude, &l.AgentID, &l.PublishDate, &l.CreatedAt, &l.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find listing %s: %w", externalID, err)
	}

	l.Images = fromJSONList(images)
	l.OriginImages = fromJSONList(originImages)
	l.FloorPlan = fromJSONList(floorPlan)
	l.OriginFloorPlan = fromJSONList(originFloorPlan)
	l.PDFDocuments = fromJSONList(pdfDocs)
	l.OriginDocuments = fromJSONList(originDocs)
	return l, nil
}

// UpdateMedia rewrites the relocated media URL sets of a committed
// listing. Nil slices leave the stored value untouched, so a failed
// relocation category never clears prior results.
func (s *Store) UpdateMedia(ctx context.Context, externalID string, images, floorPlans, documents []string) error {
	if images == nil && floorPlans == nil && documents == nil {
		return nil
	}

	set := ""
	args := []interface{}{}
	add := func(col string, vals []string) {
		if vals == nil {
			return
		}
		if set != "" {
			set += ", "
		}
		args = append(args, jsonList(vals))
		set += fmt.Sprintf("%s = $%d", col, len(args))
	}
	add("images", images)
	add("floor_plan", floorPlans)
	add("pdf_document", documents)

	args = append(args, externalID)
	query := fmt.Sprintf(
		"UPDATE listings SET %s, updated_at = NOW() WHERE external_id = $%d",
		set, len(args))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("postgres: update media %s: %w", externalID, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// jsonList encodes a URL list for a JSONB column; nil encodes as [].
func jsonList(vals []string) []byte {
	if vals == nil {
		vals = []string{}
	}
	b, err := json.Marshal(vals)
	if err != nil {
		return []byte("[]")
	}
	return b
}

func fromJSONList(raw []byte) []string {
	if len(raw) == 0 {
		return nil
	}
	var vals []string
	if err := json.Unmarshal(raw, &vals); err != nil {
		return nil
	}
	if len(vals) == 0 {
		return nil
	}
	return vals
}
