package robot

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeusync/arenasim/internal/core/models"
	"github.com/zeusync/arenasim/internal/core/systems/physics"
)

var (
	ErrInvalidURDF = errors.New("invalid urdf")
	ErrNoRootLink  = errors.New("urdf has no root link")
)

type urdfRobot struct {
	XMLName xml.Name    `xml:"robot"`
	Name    string      `xml:"name,attr"`
	Links   []urdfLink  `xml:"link"`
	Joints  []urdfJoint `xml:"joint"`
}

type urdfLink struct {
	Name string `xml:"name,attr"`
}

type urdfJoint struct {
	Name   string `xml:"name,attr"`
	Type   string `xml:"type,attr"`
	Parent struct {
		Link string `xml:"link,attr"`
	} `xml:"parent"`
	Child struct {
		Link string `xml:"link,attr"`
	} `xml:"child"`
	Origin *struct {
		XYZ string `xml:"xyz,attr"`
		RPY string `xml:"rpy,attr"`
	} `xml:"origin"`
}

// Description is a parsed URDF: the model name and the entity tree rooted at
// the root link.
type Description struct {
	Model string
	Root  *models.Entity
}

// ParseURDF builds the link tree of a URDF document. Joints become the
// parent/child edges; joint origins become the child's local pose.
func ParseURDF(data string) (Description, error) {
	var doc urdfRobot
	if err := xml.Unmarshal([]byte(data), &doc); err != nil {
		return Description{}, fmt.Errorf("%w: %v", ErrInvalidURDF, err)
	}
	if len(doc.Links) == 0 {
		return Description{}, fmt.Errorf("%w: no links", ErrInvalidURDF)
	}

	links := make(map[string]*models.Entity, len(doc.Links))
	for _, l := range doc.Links {
		if l.Name == "" {
			return Description{}, fmt.Errorf("%w: link without name", ErrInvalidURDF)
		}
		if _, dup := links[l.Name]; dup {
			return Description{}, fmt.Errorf("%w: duplicate link %q", ErrInvalidURDF, l.Name)
		}
		links[l.Name] = models.NewEntity(l.Name)
	}

	for _, j := range doc.Joints {
		parent, ok := links[j.Parent.Link]
		if !ok {
			return Description{}, fmt.Errorf("%w: joint %q parent %q is not a link", ErrInvalidURDF, j.Name, j.Parent.Link)
		}
		child, ok := links[j.Child.Link]
		if !ok {
			return Description{}, fmt.Errorf("%w: joint %q child %q is not a link", ErrInvalidURDF, j.Name, j.Child.Link)
		}
		if j.Origin != nil {
			pose, err := parseOrigin(j.Origin.XYZ, j.Origin.RPY)
			if err != nil {
				return Description{}, fmt.Errorf("%w: joint %q: %v", ErrInvalidURDF, j.Name, err)
			}
			child.SetLocal(pose)
		}
		if err := parent.AddChild(child); err != nil {
			return Description{}, fmt.Errorf("%w: joint %q: %v", ErrInvalidURDF, j.Name, err)
		}
	}

	var root *models.Entity
	for _, l := range doc.Links {
		if e := links[l.Name]; e.Parent() == nil {
			if root != nil {
				return Description{}, fmt.Errorf("%w: links %q and %q are both unparented", ErrInvalidURDF, root.Name(), e.Name())
			}
			root = e
		}
	}
	if root == nil {
		return Description{}, ErrNoRootLink
	}
	return Description{Model: doc.Name, Root: root}, nil
}

func parseOrigin(xyz, rpy string) (physics.Pose, error) {
	pose := physics.Pose{Orientation: physics.Identity}
	if xyz != "" {
		v, err := parseTriple(xyz)
		if err != nil {
			return pose, fmt.Errorf("xyz: %w", err)
		}
		pose.Position = physics.V3(v[0], v[1], v[2])
	}
	if rpy != "" {
		v, err := parseTriple(rpy)
		if err != nil {
			return pose, fmt.Errorf("rpy: %w", err)
		}
		pose.Orientation = physics.QuatFromYaw(v[2])
	}
	return pose, nil
}

func parseTriple(s string) ([3]float64, error) {
	var out [3]float64
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return out, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}
