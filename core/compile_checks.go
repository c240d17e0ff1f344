package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ CredentialProvider  = (*Manager)(nil)
	_ CredentialRefresher = (*Manager)(nil)
	_ CredentialStore     = (*MemoryCredentialStore)(nil)
	_ CredentialCodec     = JSONCredentialCodec{}
	_ BackoffScheduler    = ExponentialBackoffScheduler{}
	_ RawConfigLoader     = EnvConfigLoader{}
	_ Clock               = ClockFunc(nil)

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
