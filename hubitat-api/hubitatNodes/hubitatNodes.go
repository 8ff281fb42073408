package hubitatNodes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/zabeloliver/hubitat-bridge/hubitat-api/hubitatStructs"
)

const addressPrefix = "HE_"

var ErrUnknownNode = errors.New("unknown node")

// ActionSender dispatches a state change to the hub.
type ActionSender interface {
	SendAction(ctx context.Context, device hubitatStructs.NormalizedDevice, channel string, value string) (hubitatStructs.Ack, error)
}

// SwitchNode is a controllable device exposing the switch capability.
type SwitchNode struct {
	Address string
	sender  ActionSender
	logger  *zap.SugaredLogger

	mu     sync.RWMutex
	device hubitatStructs.NormalizedDevice
}

func (n *SwitchNode) Device() hubitatStructs.NormalizedDevice {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.device
}

func (n *SwitchNode) update(device hubitatStructs.NormalizedDevice) {
	n.mu.Lock()
	n.device = device
	n.mu.Unlock()
}

// On switches the device on. A numeric value is sent as a dim level instead.
func (n *SwitchNode) On(ctx context.Context, value string) (hubitatStructs.Ack, error) {
	value = strings.TrimSpace(value)
	if _, err := strconv.Atoi(value); err == nil {
		n.logger.Infof("DON (%s): level %s", n.Address, value)
		return n.sender.SendAction(ctx, n.Device(), "level", value)
	}
	n.logger.Infof("DON (%s)", n.Address)
	return n.sender.SendAction(ctx, n.Device(), "switch", "on")
}

func (n *SwitchNode) Off(ctx context.Context) (hubitatStructs.Ack, error) {
	n.logger.Infof("DOF (%s)", n.Address)
	return n.sender.SendAction(ctx, n.Device(), "switch", "off")
}

// Registry keeps one SwitchNode per hub device that has a switch attribute.
type Registry struct {
	sender ActionSender
	logger *zap.SugaredLogger

	mu    sync.RWMutex
	nodes map[string]*SwitchNode
}

func NewRegistry(sender ActionSender, logger *zap.SugaredLogger) *Registry {
	return &Registry{
		sender: sender,
		logger: logger,
		nodes:  make(map[string]*SwitchNode),
	}
}

func Address(deviceId string) string {
	return addressPrefix + deviceId
}

// Register adds nodes for new switch devices and refreshes known ones.
// It returns the addresses of the nodes created by this call, sorted.
func (r *Registry) Register(devices map[string]hubitatStructs.NormalizedDevice) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []string
	for id, device := range devices {
		if _, ok := device.Attributes["switch"]; !ok {
			continue
		}
		address := Address(id)
		if node, ok := r.nodes[address]; ok {
			node.update(device)
			continue
		}
		r.nodes[address] = &SwitchNode{
			Address: address,
			sender:  r.sender,
			logger:  r.logger,
			device:  device,
		}
		added = append(added, address)
	}
	slices.Sort(added)
	for _, address := range added {
		d := r.nodes[address].device
		r.logger.Infof("New node created: %s (%s)", d.Name, d.Kind)
	}
	return added
}

func (r *Registry) Node(address string) (*SwitchNode, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[address]
	return n, ok
}

func (r *Registry) Addresses() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addresses := maps.Keys(r.nodes)
	slices.Sort(addresses)
	return addresses
}

// Command routes a controller command to the node of deviceId. "off" switches
// the device off, anything else is passed to On.
func (r *Registry) Command(ctx context.Context, deviceId string, payload string) error {
	node, ok := r.Node(Address(deviceId))
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownNode, Address(deviceId))
	}
	var err error
	if strings.EqualFold(strings.TrimSpace(payload), "off") {
		_, err = node.Off(ctx)
	} else {
		_, err = node.On(ctx, payload)
	}
	return err
}
