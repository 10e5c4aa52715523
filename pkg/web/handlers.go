package web

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/rockguide/pkg/hub"
)

// JointsResponse is the tracked joint view served at /api/joints.
type JointsResponse struct {
	BodyVisible bool       `json:"body_visible"`
	TrackingID  uint64     `json:"tracking_id,omitempty"`
	HandLeft    [3]float64 `json:"hand_left"`
	HandRight   [3]float64 `json:"hand_right"`
	Head        [3]float64 `json:"head"`
	Distance    float64    `json:"distance"`
	Index       int        `json:"index"`
	Target      string     `json:"target,omitempty"`
}

func vec(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

// handleStatus returns the latest session status
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Status())
}

// handleJoints returns the last tracked hand and head positions
func (s *Server) handleJoints(c *fiber.Ctx) error {
	snap := s.Status().Sequence
	if s.snapshot != nil {
		snap = s.snapshot()
	}
	return c.JSON(JointsResponse{
		BodyVisible: snap.BodyVisible,
		TrackingID:  snap.TrackingID,
		HandLeft:    vec(snap.HandLeft),
		HandRight:   vec(snap.HandRight),
		Head:        vec(snap.Head),
		Distance:    snap.Distance,
		Index:       snap.Index,
		Target:      snap.Target,
	})
}

func (s *Server) handleTargets(c *fiber.Ctx) error {
	if s.targets == nil {
		return c.JSON([]TargetInfo{})
	}
	return c.JSON(s.targets)
}

// handleStatusWS sends the current status, then every published one
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.Attach(s.statusHub, c)
	if client == nil {
		return
	}

	initial, err := json.Marshal(s.Status())
	if err != nil {
		initial = nil
	}
	client.Run(initial)
}
