package kindred

const mutSendEmail = `
mutation sendMagicLinkOrOTP($email: String!, $path: String) {
  startEmailLoginUser(email: $email, path: $path) {
    mode
    length
  }
}
`

const mutFinishEmail = `
mutation FinishEmailLoginUser($deviceId: String, $email: String!, $emailToken: String!) {
  finishEmailLoginUser(deviceId: $deviceId, email: $email, emailToken: $emailToken) {
    accessToken
    refreshToken
  }
}
`

const mutRefreshToken = `
mutation refreshUserToken($refreshToken: String!) {
  refreshUserToken(refreshToken: $refreshToken) {
    accessToken
    refreshToken
  }
}
`

const queryMe = `
query me {
  me {
    id
    email
  }
}
`

// Only the fields the search maps are selected.
const queryExploreList = `
query exploreList($filter: FlexibleSearchFilter!, $pagination: Pagination!, $sortedAt: Date!, $width: Int!) {
  getHomesWithSearchCriteria(filter: $filter, pagination: $pagination, sortedAt: $sortedAt) {
    page
    hasMore
    homeRecs {
      home {
        id
        title
        lat
        lon
        maxGuestsLimit
        bathrooms
        bedroomsCount
        petPreference
        petHostingDetails
        media { url thumbnailUrl(width: $width) }
        availabilitiesWithoutBookedDates { startDate endDate }
      }
    }
  }
}
`
