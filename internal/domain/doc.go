// Package domain models earthquake events delivered as a GeoJSON feature
// collection and the pure engines that derive the map and table views.
//
// # Data Source
//
// Events originate from the USGS FDSN event service
// (https://earthquake.usgs.gov/fdsnws/event/1/query?format=geojson). An upstream
// collector stores the last 24 hours of events and serves them back as a single
// FeatureCollection. The service polls that collection on an interval and
// replaces its in-memory snapshot wholesale on every accepted fetch.
//
// # Feed Conventions
//
// Coordinates:
//
//	[longitude, latitude, depth]  →  e.g. [-117.59, 35.77, 8.2]
//	Longitude first, as GeoJSON requires. Depth is kilometres below the surface.
//	Some legacy documents carry depth as geometry.depth instead of the third
//	coordinate; both are read. Depth is canonicalized to its absolute value
//	because a few networks report negative (above sea level) hypocentres.
//	A feature without longitude and latitude is malformed and skipped.
//
// Properties (two schemas are accepted):
//
//	compact:  magnitude, magnitude_type, place, title, utc_time
//	native:   mag, magType, place, title, time (epoch milliseconds)
//
//	The compact schema wins when both are present. utc_time is formatted as
//	"2006-01-02 15:04:05" in UTC. Magnitude may arrive as a number, a numeric
//	string, an empty string, or null; anything non-numeric is absent.
//
// # Absent Values
//
// Magnitude and depth are optional. An absent value never satisfies a range
// predicate and always sorts after every present value, in both directions.
// Absent is never coerced to zero.
//
// # Derived Views
//
// Both views derive from the same inputs: the stored collection, a
// [FilterConfig], a [SortConfig], the pagination state, and an optional user
// [Location]. [Derive] applies filter then sort once and hands the full result
// to the map and a single [Page] of it to the table, so the two never diverge.
//
// Distance between the user and an event is great-circle distance on a sphere
// of radius [EarthRadiusKm], see [DistanceKm].
package domain
