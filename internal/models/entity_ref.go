package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type EntityType string

const (
	EntityBoardingHouse EntityType = "BoardingHouse"
	EntityRoom          EntityType = "Room"
	EntityRoommatePost  EntityType = "RoommatePost"
	EntityUser          EntityType = "User"
)

// DefaultEntityType is assumed when an upload does not name its entity.
const DefaultEntityType = EntityBoardingHouse

var ErrUnknownEntityType = errors.New("unknown entity type")

// EntityRef points at the domain object an image belongs to.
type EntityRef interface {
	Type() EntityType
	EntityID() uuid.UUID
	entityRef()
}

type BoardingHouseRef struct{ ID uuid.UUID }
type RoomRef struct{ ID uuid.UUID }
type RoommatePostRef struct{ ID uuid.UUID }
type UserRef struct{ ID uuid.UUID }

func (r BoardingHouseRef) Type() EntityType    { return EntityBoardingHouse }
func (r BoardingHouseRef) EntityID() uuid.UUID { return r.ID }
func (BoardingHouseRef) entityRef()            {}

func (r RoomRef) Type() EntityType    { return EntityRoom }
func (r RoomRef) EntityID() uuid.UUID { return r.ID }
func (RoomRef) entityRef()            {}

func (r RoommatePostRef) Type() EntityType    { return EntityRoommatePost }
func (r RoommatePostRef) EntityID() uuid.UUID { return r.ID }
func (RoommatePostRef) entityRef()            {}

func (r UserRef) Type() EntityType    { return EntityUser }
func (r UserRef) EntityID() uuid.UUID { return r.ID }
func (UserRef) entityRef()            {}

func NewEntityRef(t EntityType, id uuid.UUID) (EntityRef, error) {
	switch t {
	case EntityBoardingHouse:
		return BoardingHouseRef{ID: id}, nil
	case EntityRoom:
		return RoomRef{ID: id}, nil
	case EntityRoommatePost:
		return RoommatePostRef{ID: id}, nil
	case EntityUser:
		return UserRef{ID: id}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, t)
}

// ParseEntityRef builds a reference from request strings. An empty type
// falls back to DefaultEntityType.
func ParseEntityRef(entityType, entityID string) (EntityRef, error) {
	t := EntityType(entityType)
	if t == "" {
		t = DefaultEntityType
	}
	id, err := uuid.Parse(entityID)
	if err != nil {
		return nil, fmt.Errorf("invalid entity id: %w", err)
	}
	return NewEntityRef(t, id)
}
