package utils

//PersonClass is the COCO class id of a detected person
const PersonClass = 0

//BallClass is the COCO class id of a detected sports ball
const BallClass = 32

//HomeTeam is the team name reported for cluster label 0
const HomeTeam = "home"

//AwayTeam is the team name reported for cluster label 1
const AwayTeam = "away"

//TeamCount is the default number of color clusters (home + away)
const TeamCount = 2

//NeutralGray is the uniform color returned when a torso region is empty
var NeutralGray = [3]int{128, 128, 128}

//TorsoTop and TorsoBottom bound the uniform band as a fraction of box height
const (
	TorsoTop    = 0.3
	TorsoBottom = 0.6
)

//MinPossessionConfidence is the floor of a possession claim's confidence
const MinPossessionConfidence = 0.5

//ProcessingFailedStatus is sent back to the client when a frame could not be processed
const ProcessingFailedStatus = "processing_failed"
