// Package logging builds the process logger.
//
// The logger is a plain *slog.Logger configured for level, format and
// output. Its handler adds fields carried in the context, such as the
// request ID set by the admin server, to every record logged with a
// *Context method:
//
//	logger, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	if err != nil {
//	    return err
//	}
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "Reload requested") // includes request_id
package logging
