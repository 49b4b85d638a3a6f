package kitchen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/appetiteclub/ordering/internal/tenant"
	"github.com/appetiteclub/ordering/pkg/enums/channel"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	DeviceOnline  = "online"
	DeviceOffline = "offline"
)

// Device ids are chosen by the caller and unique per tenant only, so the
// stored key is separate.
type Device struct {
	Key             string     `bson:"_id" json:"-"`
	ID              string     `bson:"device_id" json:"id"`
	TenantID        string     `bson:"tenant_id" json:"tenant_id"`
	Label           string     `bson:"label,omitempty" json:"label,omitempty"`
	Type            string     `bson:"type,omitempty" json:"type,omitempty"`
	Capabilities    []string   `bson:"capabilities" json:"capabilities"`
	Status          string     `bson:"status" json:"status"`
	LastHeartbeatAt *time.Time `bson:"last_heartbeat_at,omitempty" json:"last_heartbeat_at,omitempty"`
	LastSeenAt      *time.Time `bson:"last_seen_at,omitempty" json:"last_seen_at,omitempty"`
	CreatedAt       time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `bson:"updated_at" json:"updated_at"`
}

func (d *Device) CanPrint() bool {
	for _, c := range d.Capabilities {
		if c == channel.Channels.Print.Code() {
			return true
		}
	}
	return false
}

type RegisterRequest struct {
	ID           string   `json:"id"`
	Label        string   `json:"label,omitempty"`
	Type         string   `json:"type,omitempty"`
	Capabilities []string `json:"capabilities"`
	Status       string   `json:"status,omitempty"`
}

type DeviceRegistry struct {
	backend tenant.Backend
	now     func() time.Time
}

func NewDeviceRegistry(backend tenant.Backend) *DeviceRegistry {
	return &DeviceRegistry{
		backend: backend,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (r *DeviceRegistry) coll(tenantID string) tenant.Collection {
	return tenant.Scope(r.backend, tenantID).Collection(DevicesCollection)
}

// Register creates the device or refreshes its description.
func (r *DeviceRegistry) Register(ctx context.Context, tenantID string, req RegisterRequest) (*Device, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return nil, fmt.Errorf("device id is required")
	}
	status := req.Status
	if status != DeviceOffline {
		status = DeviceOnline
	}
	if req.Capabilities == nil {
		req.Capabilities = []string{}
	}
	now := r.now()

	fields := bson.M{
		"label":        req.Label,
		"type":         req.Type,
		"capabilities": req.Capabilities,
		"status":       status,
		"last_seen_at": now,
	}
	res, err := r.coll(tenantID).UpdateOne(ctx, bson.M{"device_id": id}, tenant.Set{Fields: fields})
	if err != nil {
		return nil, fmt.Errorf("cannot update device: %w", err)
	}

	if res.Matched == 0 {
		d := &Device{
			Key:          uuid.NewString(),
			ID:           id,
			TenantID:     tenantID,
			Label:        req.Label,
			Type:         req.Type,
			Capabilities: req.Capabilities,
			Status:       status,
			LastSeenAt:   &now,
		}
		doc, err := tenant.Encode(d)
		if err != nil {
			return nil, err
		}
		if err := r.coll(tenantID).InsertOne(ctx, doc); err != nil {
			return nil, fmt.Errorf("cannot insert device: %w", err)
		}
	}

	return r.Get(ctx, tenantID, id)
}

// Heartbeat marks the device online. It returns nil for unknown devices.
func (r *DeviceRegistry) Heartbeat(ctx context.Context, tenantID, deviceID string) (*Device, error) {
	now := r.now()
	res, err := r.coll(tenantID).UpdateOne(ctx, bson.M{"device_id": deviceID}, tenant.Set{Fields: bson.M{
		"status":            DeviceOnline,
		"last_heartbeat_at": now,
		"last_seen_at":      now,
	}})
	if err != nil {
		return nil, fmt.Errorf("cannot record heartbeat: %w", err)
	}
	if res.Matched == 0 {
		return nil, nil
	}
	return r.Get(ctx, tenantID, deviceID)
}

func (r *DeviceRegistry) Get(ctx context.Context, tenantID, deviceID string) (*Device, error) {
	d, err := tenant.FindOne[Device](ctx, r.coll(tenantID), bson.M{"device_id": deviceID})
	if err != nil {
		return nil, fmt.Errorf("cannot find device: %w", err)
	}
	return d, nil
}

func (r *DeviceRegistry) List(ctx context.Context, tenantID string) ([]Device, error) {
	devices, err := tenant.FindAll[Device](ctx, r.coll(tenantID), bson.M{},
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "device_id"}}})
	if err != nil {
		return nil, fmt.Errorf("cannot list devices: %w", err)
	}
	return devices, nil
}

// HasPrinter reports whether the tenant owns any print-capable device, online
// or not. Tickets queued while a printer is offline wait for it.
func (r *DeviceRegistry) HasPrinter(ctx context.Context, tenantID string) (bool, error) {
	doc, err := r.coll(tenantID).FindOne(ctx, bson.M{"capabilities": channel.Channels.Print.Code()})
	if err != nil {
		return false, fmt.Errorf("cannot look up printers: %w", err)
	}
	return doc != nil, nil
}

// PrintersAcrossTenants lists every print-capable device that is not offline,
// grouped by tenant.
func (r *DeviceRegistry) PrintersAcrossTenants(ctx context.Context) ([]Device, error) {
	docs, err := tenant.CrossTenant(r.backend).Find(ctx, DevicesCollection, printerFilter(),
		tenant.FindOptions{Sort: []tenant.Sort{{Field: "tenant_id"}, {Field: "device_id"}}})
	if err != nil {
		return nil, fmt.Errorf("cannot list printers: %w", err)
	}

	out := make([]Device, 0, len(docs))
	for _, doc := range docs {
		d, err := tenant.Decode[Device](doc)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func printerFilter() bson.M {
	return bson.M{
		"capabilities": channel.Channels.Print.Code(),
		"status":       bson.M{"$ne": DeviceOffline},
	}
}
