package mysql

const insertResortsPrefix = `
INSERT INTO resorts
  (name, position, region, state, lat, lon, skiable_acres, vertical_drop, annual_snowfall)
VALUES `

// Use VALUES(col) for broad compatibility with 5.7 and 8.0.
const insertResortsOnDup = `
ON DUPLICATE KEY UPDATE
  position        = VALUES(position),
  region          = VALUES(region),
  state           = VALUES(state),
  lat             = VALUES(lat),
  lon             = VALUES(lon),
  skiable_acres   = VALUES(skiable_acres),
  vertical_drop   = VALUES(vertical_drop),
  annual_snowfall = VALUES(annual_snowfall),
  updated_at      = CURRENT_TIMESTAMP
`

// Catalog order is the load order, kept in position.
const listResortsSQL = `
SELECT name, region, state, lat, lon, skiable_acres, vertical_drop, annual_snowfall
FROM resorts
ORDER BY position, name
`
