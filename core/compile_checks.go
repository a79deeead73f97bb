package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ DispatchService    = (*Service)(nil)
	_ CodeIssuer         = RandomCodeIssuer{}
	_ VerificationPolicy = ExactMatchPolicy{}
	_ LocationSink       = (*LocationBroadcaster)(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
