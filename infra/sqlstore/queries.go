package sqlstore

// Queries use ? placeholders and are rebound for the postgres dialect.

const queryStatusIDByName = `
SELECT id FROM %s
WHERE lower(name) = lower(?)
`

const queryTypeIDByName = `
SELECT id, name FROM event_type
WHERE lower(name) = lower(?)
`

const querySeverityIDByName = `
SELECT id, name FROM severity
WHERE lower(name) = lower(?)
`

const queryInsertEvent = `
INSERT INTO event (id, description, latitude, longitude, type_id, severity_id, status_id, declared_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`

const queryGetEvent = `
SELECT e.id, e.description, e.latitude, e.longitude, t.name, s.name, e.status_id, e.declared_at
FROM event e
JOIN event_type t ON t.id = e.type_id
JOIN severity s ON s.id = e.severity_id
WHERE e.id = ?
`

const queryUpdateEventDetails = `
UPDATE event
SET description = ?, latitude = ?, longitude = ?, type_id = ?, severity_id = ?
WHERE id = ?
`

const querySetEventStatus = `
UPDATE event
SET status_id = ?
WHERE id = ? AND status_id IN (%s)
`

const queryEventDeclaration = `
SELECT id, description, latitude, longitude, type_id, status_id, severity_id
FROM event
WHERE id = ?
`

const queryInsertPending = `
INSERT INTO intervention (event_id, vehicle_id, status_id)
VALUES (?, ?, ?)
ON CONFLICT (event_id, vehicle_id) DO NOTHING
`

const queryReopenCancelled = `
UPDATE intervention
SET status_id = ?
WHERE event_id = ? AND vehicle_id = ? AND status_id = ?
`

const queryInsertCommitted = `
INSERT INTO intervention (event_id, vehicle_id, status_id, started_at)
VALUES (?, ?, ?, ?)
ON CONFLICT (event_id, vehicle_id) DO NOTHING
`

const querySetInterventionStatus = `
UPDATE intervention
SET status_id = ?%s
WHERE event_id = ? AND vehicle_id = ? AND status_id IN (%s)
`

const queryGetIntervention = `
SELECT status_id, started_at, ended_at
FROM intervention
WHERE event_id = ? AND vehicle_id = ?
`

const queryPendingVehicles = `
SELECT vehicle_id
FROM intervention
WHERE event_id = ? AND status_id = ?
ORDER BY vehicle_id
`

const queryVehicleHasStatus = `
SELECT COUNT(1)
FROM intervention
WHERE vehicle_id = ? AND status_id = ?
`

const queryActiveForEvent = `
SELECT COUNT(1)
FROM intervention
WHERE event_id = ? AND status_id = ? AND ended_at IS NULL
`

const querySetVehicleStatus = `
UPDATE vehicle
SET status_id = ?
WHERE id = ? AND status_id IN (%s)
`

const queryUpsertVehicle = `
INSERT INTO vehicle (id, plate, latitude, longitude, station, status_id, last_position_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    plate = excluded.plate,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    station = excluded.station,
    last_position_at = excluded.last_position_at
`

const queryDeleteEquipment = `
DELETE FROM vehicle_equipment WHERE vehicle_id = ?
`

const queryInsertEquipment = `
INSERT INTO vehicle_equipment (vehicle_id, name, level, capacity)
VALUES (?, ?, ?, ?)
`

const queryInterventionSnapshot = `
SELECT i.event_id, i.vehicle_id, COALESCE(v.plate, ''), i.status_id, i.started_at, i.ended_at
FROM intervention i
LEFT JOIN vehicle v ON v.id = i.vehicle_id
WHERE i.event_id = ? AND i.vehicle_id = ?
`

const queryVehicleSnapshot = `
SELECT id, plate, latitude, longitude, COALESCE(station, ''), status_id, last_position_at
FROM vehicle
WHERE id = ?
`

const queryVehicleEquipment = `
SELECT name, level, capacity
FROM vehicle_equipment
WHERE vehicle_id = ?
ORDER BY name
`

const queryEventSnapshot = `
SELECT e.id, e.description, e.latitude, e.longitude, e.status_id, t.name, s.name, s.scale, s.vehicles_required
FROM event e
JOIN event_type t ON t.id = e.type_id
JOIN severity s ON s.id = e.severity_id
WHERE e.id = ?
`
