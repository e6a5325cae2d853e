// Package sharedconfig lists and updates SSO token profiles in the AWS
// shared config file.
//
// Only the fields the token manager needs are read or written:
//
//	[profile dev]
//	sso_session = corp
//	region = eu-west-1
//
//	[sso-session corp]
//	sso_start_url = https://corp.awsapps.com/start
//	sso_region = eu-west-1
//	sso_registration_scopes = sso:account:access
//
// Every other section and key is preserved on write.
package sharedconfig
