package configuration

import "github.com/adampresley/configinator"

type Config struct {
	AwsEndpointUrl      string `flag:"awsep" env:"AWS_ENDPOINT_URL" default:"http://localhost:4566" description:"AWS endpoint URL"`
	AwsRegion           string `flag:"awsregion" env:"AWS_REGION" default:"us-east-1" description:"AWS region"`
	AwsAccessKeyId      string `flag:"awsaccesskeyid" env:"AWS_ACCESS_KEY_ID" default:"" description:"AWS access key ID"`
	AwsSecretAccessKey  string `flag:"awssecretaccesskey" env:"AWS_SECRET_ACCESS_KEY" default:"" description:"AWS secret access key"`
	AwsBucket           string `flag:"awsbucket" env:"AWS_BUCKET" default:"image-captions" description:"S3 bucket images are stored in"`
	CaptionServiceURL   string `flag:"captionurl" env:"CAPTION_SERVICE_URL" default:"http://localhost:5000" description:"Base URL of the caption service"`
	CaptionTimeout      int    `flag:"captiontimeout" env:"CAPTION_TIMEOUT_SECONDS" default:"60" description:"Seconds to wait for a caption before giving up"`
	CleanupInterval     int    `flag:"cleanupinterval" env:"CLEANUP_INTERVAL_MINUTES" default:"30" description:"Minutes between cleanup runs for expired sessions and idle view state"`
	CookieSecret        string `flag:"cookiesecret" env:"COOKIE_SECRET" default:"password" description:"Secret for encoding cookies"`
	DSN                 string `flag:"dsn" env:"DSN" default:"file:./data/imagecaptioning.db?_pragma=busy_timeout(5000)" description:"Data source name"`
	EmailApiKey         string `flag:"emailapikey" env:"EMAIL_API_KEY" default:"" description:"Resend API key for welcome emails. Email is off when empty"`
	EmailFromAddress    string `flag:"emailfrom" env:"EMAIL_FROM_ADDRESS" default:"" description:"Address welcome emails are sent from"`
	EmailFromName       string `flag:"emailfromname" env:"EMAIL_FROM_NAME" default:"Image Captioning" description:"Name welcome emails are sent from"`
	GoogleClientID      string `flag:"googleclientid" env:"GOOGLE_CLIENT_ID" default:"" description:"Google OAuth client ID. Google sign-in is off when empty"`
	GoogleClientSecret  string `flag:"googleclientsecret" env:"GOOGLE_CLIENT_SECRET" default:"" description:"Google OAuth client secret"`
	GoogleRedirectURL   string `flag:"googleredirecturl" env:"GOOGLE_REDIRECT_URL" default:"http://localhost:8081/auth/google/callback" description:"Google OAuth redirect URL"`
	Host                string `flag:"host" env:"HOST" default:"localhost:8081" description:"The address and port to bind the HTTP server to"`
	IdleStateMinutes    int    `flag:"idlestate" env:"IDLE_STATE_MINUTES" default:"120" description:"Minutes before an untouched home view state is dropped"`
	ImageFolder         string `flag:"imagefolder" env:"IMAGE_FOLDER" default:"images" description:"S3 folder uploaded images are stored under"`
	LogLevel            string `flag:"loglevel" env:"LOG_LEVEL" default:"debug" description:"The log level to use. Valid values are 'debug', 'info', 'warn', and 'error'"`
	MaxUploadMB         int    `flag:"maxupload" env:"MAX_UPLOAD_MB" default:"10" description:"Largest image, in megabytes, that can be selected"`
	SiteURL             string `flag:"siteurl" env:"SITE_URL" default:"http://localhost:8081" description:"Public URL of the site, used in emails"`
	SessionTTLHours     int    `flag:"sessionttl" env:"SESSION_TTL_HOURS" default:"168" description:"Hours an auth session stays valid"`
}

func LoadConfig() Config {
	config := Config{}
	configinator.Behold(&config)
	return config
}
