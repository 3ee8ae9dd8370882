// ABOUTME: Mock CAMARA network tool backend for the drone dashboard
// ABOUTME: Registers the fourteen network tools with schemas and canned payloads

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CamaraOptions tunes the mock CAMARA backend.
type CamaraOptions struct {
	// DefaultDeviceID is used when a tool call omits device_id.
	DefaultDeviceID string
	// DefaultPhoneNumber is used when integrity_check omits phone_number.
	DefaultPhoneNumber string
}

// NewCamaraGateway builds a tool gateway with the full CAMARA mock tool set
// registered. The tools simulate the network APIs a real deployment would
// reach: QoS, device location, geofencing, edge discovery, WebRTC signalling
// and SIM integrity.
func NewCamaraGateway(opts CamaraOptions, logger *slog.Logger) (*Gateway, error) {
	if opts.DefaultDeviceID == "" {
		opts.DefaultDeviceID = "drone-001"
	}
	if opts.DefaultPhoneNumber == "" {
		opts.DefaultPhoneNumber = "+61491570006"
	}

	g := NewGateway(logger)
	b := &camaraBackend{opts: opts}

	for _, reg := range []struct {
		spec    Spec
		handler Handler
	}{
		{
			Spec{
				Name:        "get_qos_profiles",
				Description: "List the available network Quality on Demand profiles.",
				InputSchema: objectSchema(nil, nil),
			},
			b.getQoSProfiles,
		},
		{
			Spec{
				Name:        "get_connected_network",
				Description: "Get the current network connectivity status for a device.",
				InputSchema: objectSchema(map[string]string{
					"device_id": "string",
				}, nil),
			},
			b.getConnectedNetwork,
		},
		{
			Spec{
				Name:        "geocode_address",
				Description: "Resolve a street address to latitude/longitude coordinates.",
				InputSchema: objectSchema(map[string]string{
					"address": "string",
				}, []string{"address"}),
			},
			b.geocodeAddress,
		},
		{
			Spec{
				Name:        "verify_location",
				Description: "Verify whether a device is within a radius of a coordinate.",
				InputSchema: objectSchema(map[string]string{
					"device_id": "string",
					"latitude":  "number",
					"longitude": "number",
					"radius":    "number",
				}, []string{"latitude", "longitude"}),
			},
			b.verifyLocation,
		},
		{
			Spec{
				Name:        "discover_edge_node",
				Description: "Find the closest edge cloud zone for a device.",
				InputSchema: objectSchema(map[string]string{
					"device_id": "string",
				}, nil),
			},
			b.discoverEdgeNode,
		},
		{
			Spec{
				Name:        "deploy_edge_application",
				Description: "Deploy an application to an edge cloud zone.",
				InputSchema: objectSchema(map[string]string{
					"app_name":             "string",
					"edge_cloud_zone_name": "string",
				}, []string{"app_name"}),
			},
			b.deployEdgeApplication,
		},
		{
			Spec{
				Name:        "undeploy_edge_application",
				Description: "Remove a previously deployed edge application.",
				InputSchema: objectSchema(map[string]string{
					"deployment_id": "string",
				}, []string{"deployment_id"}),
			},
			b.undeployEdgeApplication,
		},
		{
			Spec{
				Name:        "subscribe_geofencing",
				Description: "Subscribe to geofence entry/exit events for a device around a coordinate.",
				InputSchema: objectSchema(map[string]string{
					"device_id": "string",
					"latitude":  "number",
					"longitude": "number",
					"radius":    "number",
				}, []string{"latitude", "longitude"}),
			},
			b.subscribeGeofencing,
		},
		{
			Spec{
				Name:        "unsubscribe_geofencing",
				Description: "Cancel a geofencing subscription.",
				InputSchema: objectSchema(map[string]string{
					"subscription_id": "string",
					"device_id":       "string",
				}, []string{"subscription_id"}),
			},
			b.unsubscribeGeofencing,
		},
		{
			Spec{
				Name:        "subscribe_connected_network",
				Description: "Subscribe to connectivity status change events for a device.",
				InputSchema: objectSchema(map[string]string{
					"device_id": "string",
				}, nil),
			},
			b.subscribeConnectedNetwork,
		},
		{
			Spec{
				Name:        "unsubscribe_connected_network",
				Description: "Cancel a connectivity status subscription.",
				InputSchema: objectSchema(map[string]string{
					"subscription_id": "string",
					"device_id":       "string",
				}, []string{"subscription_id"}),
			},
			b.unsubscribeConnectedNetwork,
		},
		{
			Spec{
				Name:        "handle_webrtc_call",
				Description: "Accept or cancel an incoming WebRTC call from a field device.",
				InputSchema: objectSchema(map[string]string{
					"action":    "string",
					"device_id": "string",
				}, []string{"action"}),
			},
			b.handleWebRTCCall,
		},
		{
			Spec{
				Name:        "create_quality_on_demand",
				Description: "Create a Quality on Demand session for a device with a QoS profile.",
				InputSchema: objectSchema(map[string]string{
					"device_id":   "string",
					"qos_profile": "string",
					"duration":    "number",
				}, []string{"qos_profile"}),
			},
			b.createQualityOnDemand,
		},
		{
			Spec{
				Name:        "integrity_check",
				Description: "Run SIM swap and number verification integrity checks for a device.",
				InputSchema: objectSchema(map[string]string{
					"device_id":    "string",
					"phone_number": "string",
				}, nil),
			},
			b.integrityCheck,
		},
	} {
		if err := g.Register(reg.spec, reg.handler); err != nil {
			return nil, err
		}
	}

	return g, nil
}

type camaraBackend struct {
	opts CamaraOptions
}

func (b *camaraBackend) deviceID(args map[string]any) string {
	if id, ok := args["device_id"].(string); ok && id != "" {
		return id
	}
	return b.opts.DefaultDeviceID
}

func (b *camaraBackend) getQoSProfiles(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{
		"profiles": []map[string]any{
			{
				"name":              "QOS_H",
				"description":       "High priority: low latency, guaranteed bandwidth for video streaming",
				"maxUpstreamRate":   map[string]any{"value": 20, "unit": "Mbps"},
				"maxDownstreamRate": map[string]any{"value": 50, "unit": "Mbps"},
			},
			{
				"name":              "QOS_M",
				"description":       "Medium priority: balanced latency and throughput for telemetry",
				"maxUpstreamRate":   map[string]any{"value": 10, "unit": "Mbps"},
				"maxDownstreamRate": map[string]any{"value": 20, "unit": "Mbps"},
			},
			{
				"name":              "QOS_L",
				"description":       "Low priority: best effort for background transfers",
				"maxUpstreamRate":   map[string]any{"value": 2, "unit": "Mbps"},
				"maxDownstreamRate": map[string]any{"value": 5, "unit": "Mbps"},
			},
		},
	}, nil
}

func (b *camaraBackend) getConnectedNetwork(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{
		"device_id":            b.deviceID(args),
		"reachable":            true,
		"connectivity":         "DATA",
		"connectedNetworkType": "5G",
		"lastStatusTime":       time.Now().UTC().Add(-3 * time.Second).Format(time.RFC3339),
	}, nil
}

// gazetteer maps lowercase address fragments to known coordinates. The mock
// resolves locally instead of calling a geocoding service.
var gazetteer = []struct {
	match   string
	lat     float64
	lon     float64
	display string
}{
	{"kalorama", -37.8259, 145.3569, "1234 Mount Dandenong Tourist Rd, Kalorama VIC 3766, Australia"},
	{"mount dandenong", -37.8334, 145.3516, "Mount Dandenong Tourist Rd, Mount Dandenong VIC 3767, Australia"},
	{"collins st", -37.8136, 144.9631, "Collins St, Melbourne VIC 3000, Australia"},
	{"melbourne", -37.8136, 144.9631, "Melbourne VIC 3000, Australia"},
}

func (b *camaraBackend) geocodeAddress(ctx context.Context, args map[string]any) (any, error) {
	address, _ := args["address"].(string)
	needle := strings.ToLower(address)
	for _, entry := range gazetteer {
		if strings.Contains(needle, entry.match) {
			return map[string]any{
				"address":      address,
				"latitude":     entry.lat,
				"longitude":    entry.lon,
				"display_name": entry.display,
			}, nil
		}
	}
	return map[string]any{
		"address": address,
		"error":   "Address not found",
	}, nil
}

func (b *camaraBackend) verifyLocation(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{
		"device_id":          b.deviceID(args),
		"verificationResult": "TRUE",
		"lastLocationTime":   "30 seconds ago",
	}, nil
}

func (b *camaraBackend) discoverEdgeNode(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{
		"device_id":           b.deviceID(args),
		"edgeCloudZoneName":   "MELBOURNE-ZONE-1",
		"edgeCloudProvider":   "Telstra Cloud",
		"edgeCloudZoneStatus": "active",
	}, nil
}

func (b *camaraBackend) deployEdgeApplication(ctx context.Context, args map[string]any) (any, error) {
	appName, _ := args["app_name"].(string)
	zone, ok := args["edge_cloud_zone_name"].(string)
	if !ok || zone == "" {
		zone = "MELBOURNE-ZONE-1"
	}
	return map[string]any{
		"deployment_id":        uuid.New().String(),
		"app_name":             appName,
		"edge_cloud_zone_name": zone,
		"status":               "deployed",
	}, nil
}

func (b *camaraBackend) undeployEdgeApplication(ctx context.Context, args map[string]any) (any, error) {
	deploymentID, _ := args["deployment_id"].(string)
	return map[string]any{
		"deployment_id": deploymentID,
		"status":        "undeployed",
	}, nil
}

func (b *camaraBackend) subscribeGeofencing(ctx context.Context, args map[string]any) (any, error) {
	radius, ok := args["radius"].(float64)
	if !ok {
		radius = 5000
	}
	return map[string]any{
		"subscription_id": uuid.New().String(),
		"device_id":       b.deviceID(args),
		"latitude":        args["latitude"],
		"longitude":       args["longitude"],
		"radius":          radius,
		"status":          "active",
	}, nil
}

func (b *camaraBackend) unsubscribeGeofencing(ctx context.Context, args map[string]any) (any, error) {
	subscriptionID, _ := args["subscription_id"].(string)
	return map[string]any{
		"subscription_id": subscriptionID,
		"status":          "cancelled",
	}, nil
}

func (b *camaraBackend) subscribeConnectedNetwork(ctx context.Context, args map[string]any) (any, error) {
	return map[string]any{
		"subscription_id": uuid.New().String(),
		"device_id":       b.deviceID(args),
		"status":          "active",
	}, nil
}

func (b *camaraBackend) unsubscribeConnectedNetwork(ctx context.Context, args map[string]any) (any, error) {
	subscriptionID, _ := args["subscription_id"].(string)
	return map[string]any{
		"subscription_id": subscriptionID,
		"status":          "cancelled",
	}, nil
}

func (b *camaraBackend) handleWebRTCCall(ctx context.Context, args map[string]any) (any, error) {
	action, _ := args["action"].(string)
	switch strings.ToLower(action) {
	case "accept":
		return map[string]any{
			"session_id": uuid.New().String(),
			"device_id":  b.deviceID(args),
			"status":     "connected",
			"sdp_answer": "v=0\r\no=- 4611731400430051336 2 IN IP4 127.0.0.1\r\ns=-\r\nt=0 0\r\nm=video 9 UDP/TLS/RTP/SAVPF 96\r\na=sendrecv\r\n",
		}, nil
	case "cancel":
		return map[string]any{
			"device_id": b.deviceID(args),
			"status":    "cancelled",
		}, nil
	default:
		return map[string]any{
			"error": fmt.Sprintf("unknown action %q: expected accept or cancel", action),
		}, nil
	}
}

var qosProfiles = map[string]bool{"QOS_H": true, "QOS_M": true, "QOS_L": true}

func (b *camaraBackend) createQualityOnDemand(ctx context.Context, args map[string]any) (any, error) {
	profile, _ := args["qos_profile"].(string)
	if !qosProfiles[profile] {
		return map[string]any{
			"error": fmt.Sprintf("unknown QoS profile %q: expected QOS_H, QOS_M or QOS_L", profile),
		}, nil
	}
	duration, ok := args["duration"].(float64)
	if !ok || duration <= 0 {
		duration = 3600
	}
	now := time.Now().UTC()
	return map[string]any{
		"session_id":  "qod-session-" + uuid.New().String(),
		"device_id":   b.deviceID(args),
		"qos_profile": profile,
		"status":      "active",
		"created_at":  now.Format(time.RFC3339),
		"expires_at":  now.Add(time.Duration(duration) * time.Second).Format(time.RFC3339),
	}, nil
}

func (b *camaraBackend) integrityCheck(ctx context.Context, args map[string]any) (any, error) {
	phone, ok := args["phone_number"].(string)
	if !ok || phone == "" {
		phone = b.opts.DefaultPhoneNumber
	}
	return map[string]any{
		"device_id":          b.deviceID(args),
		"phone_number":       phone,
		"sim_swap_detected":  false,
		"number_verified":    true,
		"device_trustworthy": true,
		"checked_at":         time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// objectSchema builds a simple object schema from property name to JSON type.
func objectSchema(props map[string]string, required []string) json.RawMessage {
	properties := map[string]any{}
	for name, typ := range props {
		properties[name] = map[string]any{"type": typ}
	}
	doc := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		doc["required"] = required
	}
	raw, _ := json.Marshal(doc)
	return raw
}
