package api

import (
	"context"
	"errors"
	"time"

	"truckslot/internal/domain"
	"truckslot/internal/models"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	bookingServiceName      = "truckslot.booking.v1.BookingService"
	listReservedMethod      = "/" + bookingServiceName + "/ListReserved"
	createBookingMethod     = "/" + bookingServiceName + "/CreateBooking"
	bookingServiceProtoFile = "truckslot/booking/v1/booking.proto"
)

// BookingServiceServer is the server API of truckslot.booking.v1.BookingService.
// Messages are google.protobuf.Struct with the same field names as the HTTP API.
type BookingServiceServer interface {
	ListReserved(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var bookingServiceDesc = grpc.ServiceDesc{
	ServiceName: bookingServiceName,
	HandlerType: (*BookingServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListReserved", Handler: listReservedHandler},
		{MethodName: "CreateBooking", Handler: createBookingHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: bookingServiceProtoFile,
}

func RegisterBookingServiceServer(s grpc.ServiceRegistrar, srv BookingServiceServer) {
	s.RegisterService(&bookingServiceDesc, srv)
}

func listReservedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).ListReserved(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listReservedMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).ListReserved(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func createBookingHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookingServiceServer).CreateBooking(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: createBookingMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookingServiceServer).CreateBooking(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// BookingClient calls BookingService over an established connection.
type BookingClient struct {
	cc grpc.ClientConnInterface
}

func NewBookingClient(cc grpc.ClientConnInterface) *BookingClient {
	return &BookingClient{cc: cc}
}

func (c *BookingClient) ListReserved(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listReservedMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *BookingClient) CreateBooking(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, createBookingMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// BookingRPCService adapts the booking service to the gRPC surface.
type BookingRPCService struct {
	svc       domain.BookingService
	timeslots []string
}

func NewBookingRPCService(svc domain.BookingService, timeslots []string) *BookingRPCService {
	return &BookingRPCService{svc: svc, timeslots: timeslots}
}

func (s *BookingRPCService) ListReserved(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date := stringField(req, "date")

	reserved, err := s.svc.GetReservedTimeslots(ctx, date)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	resp := map[string]any{
		"date":          date,
		"reservedSlots": toList(reserved),
	}
	if len(s.timeslots) > 0 {
		resp["availableSlots"] = toList(availableSlots(s.timeslots, reserved))
	}
	return newStruct(resp)
}

func (s *BookingRPCService) CreateBooking(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	candidate := models.Candidate{
		ContactName:    stringField(req, "contactName"),
		ContactEmail:   stringField(req, "contactEmail"),
		Company:        stringField(req, "company"),
		VAT:            stringField(req, "vat"),
		TruckPlate:     stringField(req, "truckPlate"),
		Date:           stringField(req, "date"),
		Timeslot:       stringField(req, "timeslot"),
		ReloadCity:     stringField(req, "reloadCity"),
		NewTruckNumber: stringField(req, "newTruckNumber"),
	}

	booking, err := s.svc.SubmitBooking(ctx, candidate)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return newStruct(map[string]any{
		"message": "Booking successful",
		"booking": bookingToMap(booking),
	})
}

// toStatus maps the domain error taxonomy onto gRPC codes.
func toStatus(ctx context.Context, err error) error {
	var verr *domain.ValidationError
	var conflict *domain.ConflictError

	switch {
	case errors.As(err, &verr):
		return status.Error(codes.InvalidArgument, verr.Error())
	case errors.As(err, &conflict):
		return status.Error(codes.AlreadyExists, conflict.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, domain.ErrStorage):
		zerolog.Ctx(ctx).Error().Err(err).Msg("storage failure")
		return status.Error(codes.Unavailable, "storage unavailable, retry later")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func stringField(s *structpb.Struct, name string) string {
	if s == nil {
		return ""
	}
	return s.GetFields()[name].GetStringValue()
}

func toList(values []string) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, v)
	}
	return out
}

func bookingToMap(b *models.Booking) map[string]any {
	m := map[string]any{
		"id":           b.ID,
		"createdAt":    b.CreatedAt.UTC().Format(time.RFC3339Nano),
		"date":         b.Date,
		"timeslot":     b.Timeslot,
		"contactName":  b.ContactName,
		"contactEmail": b.ContactEmail,
		"company":      b.Company,
		"vat":          b.VAT,
		"truckPlate":   b.TruckPlate,
	}
	if b.ReloadCity != "" {
		m["reloadCity"] = b.ReloadCity
	}
	if b.NewTruckNumber != "" {
		m["newTruckNumber"] = b.NewTruckNumber
	}
	return m
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return st, nil
}
