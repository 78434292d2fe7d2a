package wire

// Command is a gearmand binary-protocol command id. Values are fixed by
// the wire format and must never be renumbered.
type Command uint32

const (
	CanDo            Command = 1
	CantDo           Command = 2
	ResetAbilities   Command = 3
	PreSleep         Command = 4
	Noop             Command = 6
	SubmitJob        Command = 7
	JobCreated       Command = 8
	GrabJob          Command = 9
	NoJob            Command = 10
	JobAssign        Command = 11
	WorkStatus       Command = 12
	WorkComplete     Command = 13
	WorkFail         Command = 14
	GetStatus        Command = 15
	EchoReq          Command = 16
	EchoRes          Command = 17
	SubmitJobBG      Command = 18
	Error            Command = 19
	StatusRes        Command = 20
	SubmitJobHigh    Command = 21
	SetClientID      Command = 22
	CanDoTimeout     Command = 23
	AllYours         Command = 24
	WorkException    Command = 25
	OptionReq        Command = 26
	OptionRes        Command = 27
	WorkData         Command = 28
	WorkWarning      Command = 29
	GrabJobUniq      Command = 30
	JobAssignUniq    Command = 31
	SubmitJobHighBG  Command = 32
	SubmitJobLow     Command = 33
	SubmitJobLowBG   Command = 34
	SubmitJobEpoch   Command = 36
	SubmitReduceJob  Command = 37
	SubmitReduceJobBackground Command = 38
	GrabJobAll       Command = 39
	JobAssignAll     Command = 40
	GetStatusUnique  Command = 41
	StatusResUnique  Command = 42

	maxCommand Command = 43
)

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether c is a known, nonzero command id within range.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

var commandNames = map[Command]string{
	CanDo:                     "CAN_DO",
	CantDo:                    "CANT_DO",
	ResetAbilities:            "RESET_ABILITIES",
	PreSleep:                  "PRE_SLEEP",
	Noop:                      "NOOP",
	SubmitJob:                 "SUBMIT_JOB",
	JobCreated:                "JOB_CREATED",
	GrabJob:                   "GRAB_JOB",
	NoJob:                     "NO_JOB",
	JobAssign:                 "JOB_ASSIGN",
	WorkStatus:                "WORK_STATUS",
	WorkComplete:              "WORK_COMPLETE",
	WorkFail:                  "WORK_FAIL",
	GetStatus:                 "GET_STATUS",
	EchoReq:                   "ECHO_REQ",
	EchoRes:                   "ECHO_RES",
	SubmitJobBG:               "SUBMIT_JOB_BG",
	Error:                     "ERROR",
	StatusRes:                 "STATUS_RES",
	SubmitJobHigh:             "SUBMIT_JOB_HIGH",
	SetClientID:               "SET_CLIENT_ID",
	CanDoTimeout:              "CAN_DO_TIMEOUT",
	AllYours:                  "ALL_YOURS",
	WorkException:             "WORK_EXCEPTION",
	OptionReq:                 "OPTION_REQ",
	OptionRes:                 "OPTION_RES",
	WorkData:                  "WORK_DATA",
	WorkWarning:               "WORK_WARNING",
	GrabJobUniq:               "GRAB_JOB_UNIQ",
	JobAssignUniq:             "JOB_ASSIGN_UNIQ",
	SubmitJobHighBG:           "SUBMIT_JOB_HIGH_BG",
	SubmitJobLow:              "SUBMIT_JOB_LOW",
	SubmitJobLowBG:            "SUBMIT_JOB_LOW_BG",
	SubmitJobEpoch:            "SUBMIT_JOB_EPOCH",
	SubmitReduceJob:           "SUBMIT_REDUCE_JOB",
	SubmitReduceJobBackground: "SUBMIT_REDUCE_JOB_BACKGROUND",
	GrabJobAll:                "GRAB_JOB_ALL",
	JobAssignAll:              "JOB_ASSIGN_ALL",
	GetStatusUnique:           "GET_STATUS_UNIQUE",
	StatusResUnique:           "STATUS_RES_UNIQUE",
}

// spec holds per-command argument shape: ArgCount is the total number of
// arguments including the data tail; HasData marks whether the last
// argument is unterminated bulk data rather than a NUL-terminated token.
type spec struct {
	ArgCount int
	HasData  bool
}

var commandSpecs = map[Command]spec{
	CanDo:                     {1, false},
	CantDo:                    {1, false},
	ResetAbilities:            {0, false},
	PreSleep:                  {0, false},
	Noop:                      {0, false},
	SubmitJob:                 {3, true},
	JobCreated:                {1, false},
	GrabJob:                   {0, false},
	NoJob:                     {0, false},
	JobAssign:                 {3, true},
	WorkStatus:                {3, false},
	WorkComplete:              {2, true},
	WorkFail:                  {1, false},
	GetStatus:                 {1, false},
	EchoReq:                   {1, true},
	EchoRes:                   {1, true},
	SubmitJobBG:               {3, true},
	Error:                     {2, false},
	StatusRes:                 {5, false},
	SubmitJobHigh:             {3, true},
	SetClientID:               {1, false},
	CanDoTimeout:              {2, false},
	AllYours:                  {0, false},
	WorkException:             {2, true},
	OptionReq:                 {1, false},
	OptionRes:                 {1, false},
	WorkData:                  {2, true},
	WorkWarning:               {2, true},
	GrabJobUniq:               {0, false},
	JobAssignUniq:             {4, true},
	SubmitJobHighBG:           {3, true},
	SubmitJobLow:              {3, true},
	SubmitJobLowBG:            {3, true},
	SubmitJobEpoch:            {4, true},
	SubmitReduceJob:           {5, true},
	SubmitReduceJobBackground: {5, true},
	GrabJobAll:                {0, false},
	JobAssignAll:              {5, true},
	GetStatusUnique:           {1, false},
	StatusResUnique:           {6, false},
}
