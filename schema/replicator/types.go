package replicator

import (
	"errors"
	"fmt"

	"github.com/luma/xdrprobe/record"
)

var ErrMalformed = errors.New("Record does not match the replicator schema")

// Version is a major.minor.patch protocol version, as carried by LOGON.
type Version struct {
	Major uint32
	Minor uint32
	Patch uint32
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Supports reports whether a server speaking v accepts a client speaking
// other. Patch levels never affect compatibility.
func (v Version) Supports(other Version) bool {
	if other.Major != v.Major {
		return other.Major < v.Major
	}

	return other.Minor <= v.Minor
}

// MakeLogon stages a LOGON command announcing the client's version.
func MakeLogon(v Version) *record.Record {
	return record.New().
		Set(Discriminator, Logon).
		Set("logon", record.New().
			Set("major", v.Major).
			Set("minor", v.Minor).
			Set("patch", v.Patch))
}

// ParseLogon extracts the version from a decoded LOGON command.
func ParseLogon(r *record.Record) (Version, error) {
	if r.Get(Discriminator) != Logon {
		return Version{}, fmt.Errorf("%w: not a LOGON command: %v", ErrMalformed, r.Get(Discriminator))
	}

	body, ok := r.Get("logon").(*record.Record)
	if !ok {
		return Version{}, fmt.Errorf("%w: LOGON without a body", ErrMalformed)
	}

	var (
		v   Version
		err error
	)

	if v.Major, err = uintField(body, "major"); err != nil {
		return Version{}, err
	}
	if v.Minor, err = uintField(body, "minor"); err != nil {
		return Version{}, err
	}
	if v.Patch, err = uintField(body, "patch"); err != nil {
		return Version{}, err
	}

	return v, nil
}

// Response is the outcome the server reports for a command.
type Response struct {
	OK bool
}

func MakeResponse(ok bool) *record.Record {
	if ok {
		return record.New().Set(Discriminator, Success)
	}

	return record.New().Set(Discriminator, Fail)
}

// ParseResponse reads a decoded response record.
func ParseResponse(v interface{}) (Response, error) {
	r, ok := v.(*record.Record)
	if !ok {
		return Response{}, fmt.Errorf("%w: response is a %T", ErrMalformed, v)
	}

	switch r.Get(Discriminator) {
	case Success:
		return Response{OK: true}, nil
	case Fail:
		return Response{OK: false}, nil
	default:
		return Response{}, fmt.Errorf("%w: unknown response %v", ErrMalformed, r.Get(Discriminator))
	}
}

// DeviceBinding ties a short device number to its logical name and the
// path it is reachable at.
type DeviceBinding struct {
	Shortname   uint32
	LogicalName string
	Path        string
}

func (d DeviceBinding) Record() *record.Record {
	return record.New().
		Set("shortname", d.Shortname).
		Set("logical_name", d.LogicalName).
		Set("path", d.Path)
}

func ParseDeviceBinding(r *record.Record) (DeviceBinding, error) {
	shortname, err := uintField(r, "shortname")
	if err != nil {
		return DeviceBinding{}, err
	}

	logicalName, ok := r.Get("logical_name").(string)
	if !ok {
		return DeviceBinding{}, fmt.Errorf("%w: logical_name is a %T", ErrMalformed, r.Get("logical_name"))
	}

	path, ok := r.Get("path").(string)
	if !ok {
		return DeviceBinding{}, fmt.Errorf("%w: path is a %T", ErrMalformed, r.Get("path"))
	}

	return DeviceBinding{Shortname: shortname, LogicalName: logicalName, Path: path}, nil
}

func uintField(r *record.Record, name string) (uint32, error) {
	n, ok := r.Get(name).(uint32)
	if !ok {
		return 0, fmt.Errorf("%w: %s is a %T", ErrMalformed, name, r.Get(name))
	}

	return n, nil
}
