package sync

import "time"

// HTTPRequestTimeout is the default timeout for all HTTP requests to the CRM and ESP APIs.
const HTTPRequestTimeout = 60 * time.Second

// DefaultCreateSendEndpoint is the Campaign Monitor API root used when none is configured.
const DefaultCreateSendEndpoint = "https://api.createsend.com/api/v3.3"
